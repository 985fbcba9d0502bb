package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// OrgNode is one node of the organization tree.
type OrgNode struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Children []OrgNode   `json:"children"`
}

// Subtree finds the first node with the given name, depth first.
func (n *OrgNode) Subtree(name string) *OrgNode {
	if n.Name == name {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].Subtree(name); found != nil {
			return found
		}
	}
	return nil
}

// IDs collects the ids of the node's descendants, the node itself excluded.
func (n *OrgNode) IDs() map[string]bool {
	ids := make(map[string]bool)
	var walk func(nodes []OrgNode)
	walk = func(nodes []OrgNode) {
		for i := range nodes {
			ids[nodes[i].ID.String()] = true
			walk(nodes[i].Children)
		}
	}
	walk(n.Children)
	return ids
}

// Contains reports whether id is the node itself or one of its descendants.
func (n *OrgNode) Contains(id string) bool {
	if n.ID.String() == id {
		return true
	}
	for i := range n.Children {
		if n.Children[i].Contains(id) {
			return true
		}
	}
	return false
}

// OrganizationTree fetches the full organization tree, inactive units
// included.
func (c *Client) OrganizationTree(ctx context.Context) (*OrgNode, error) {
	var root OrgNode
	query := url.Values{"activeOnly": {"false"}}
	if err := c.http.GetJSON(ctx, "organizations/tree", query, &root); err != nil {
		return nil, fmt.Errorf("fetch organization tree: %w", err)
	}
	return &root, nil
}

// PatientOrg is one organization relation of a patient.
type PatientOrg struct {
	ID                 json.Number `json:"id"`
	Name               string      `json:"name"`
	EffectiveAtPresent bool        `json:"effectiveAtPresent"`
}

// PatientOrganizations lists the organizations a patient is related to.
func (c *Client) PatientOrganizations(ctx context.Context, patientID string) ([]PatientOrg, error) {
	var orgs []PatientOrg
	path := fmt.Sprintf("patients/%s/organizations", patientID)
	if err := c.http.GetJSON(ctx, path, nil, &orgs); err != nil {
		return nil, fmt.Errorf("fetch organizations for patient %s: %w", patientID, err)
	}
	return orgs, nil
}
