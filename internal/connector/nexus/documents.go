package nexus

import (
	"context"
	"fmt"
	"log"
)

// closePathwayName is the pathway the robots use to mark documents for closing.
const closePathwayName = "Robot - Luk skema"

// closeDefaults holds values for required form fields that are empty when a
// document is closed. Fields without a default abort the run.
var closeDefaults = map[string]string{
	"Betydning for situation/borgerens tilstand": "Uændret",
}

type pathwayRef struct {
	Name  string `json:"name"`
	Links Links  `json:"_links"`
}

type patientPreferences struct {
	CitizenPathway []pathwayRef `json:"CITIZEN_PATHWAY"`
}

// ClosePatientDocuments walks the "Robot - Luk skema" pathway of a patient and
// closes every document reference in it by applying the "Inaktivt" or "Låst"
// action.
func (c *Client) ClosePatientDocuments(ctx context.Context, patientID int) error {
	var prefs patientPreferences
	if err := c.http.GetJSON(ctx, fmt.Sprintf("patient/%d/preferences/", patientID), nil, &prefs); err != nil {
		return fmt.Errorf("fetch patient preferences: %w", err)
	}

	var pathwayURL string
	for _, p := range prefs.CitizenPathway {
		if p.Name == closePathwayName {
			pathwayURL, _ = p.Links.Href("self")
			break
		}
	}
	if pathwayURL == "" {
		return fmt.Errorf("pathway %q not found in patient preferences", closePathwayName)
	}

	var pathway map[string]any
	if err := c.http.GetJSON(ctx, pathwayURL, nil, &pathway); err != nil {
		return fmt.Errorf("fetch pathway: %w", err)
	}

	if _, ok := linkHref(pathway, "patientActivities"); ok {
		return fmt.Errorf("pathway has patient activities, which is not supported")
	}

	referencesURL, ok := linkHref(pathway, "pathwayReferences")
	if !ok {
		return fmt.Errorf("pathway has no pathwayReferences link")
	}

	var references []any
	if err := c.http.GetJSON(ctx, referencesURL, nil, &references); err != nil {
		return fmt.Errorf("fetch pathway references: %w", err)
	}

	for _, ref := range references {
		node, ok := ref.(map[string]any)
		if !ok {
			continue
		}
		if err := c.closeReferenceTree(ctx, node); err != nil {
			return err
		}
	}

	return nil
}

// closeReferenceTree recursively closes document references.
func (c *Client) closeReferenceTree(ctx context.Context, node map[string]any) error {
	if node["type"] == "formDataV2Reference" {
		return c.closeDocument(ctx, node)
	}

	children, _ := node["children"].([]any)
	for _, child := range children {
		childNode, ok := child.(map[string]any)
		if !ok {
			continue
		}
		if err := c.closeReferenceTree(ctx, childNode); err != nil {
			return err
		}
	}

	return nil
}

// closeDocument resolves a document reference and applies its close action.
func (c *Client) closeDocument(ctx context.Context, node map[string]any) error {
	name, _ := node["name"].(string)
	selfURL, ok := linkHref(node, "self")
	if !ok {
		return fmt.Errorf("document %q has no self link", name)
	}

	log.Printf("Closing document %q", name)

	var document map[string]any
	if err := c.http.GetJSON(ctx, selfURL, nil, &document); err != nil {
		return fmt.Errorf("fetch document %q: %w", name, err)
	}

	refObjURL, ok := linkHref(document, "referenceObject")
	if !ok {
		return fmt.Errorf("document %q has no referenceObject link", name)
	}

	var refObj map[string]any
	if err := c.http.GetJSON(ctx, refObjURL, nil, &refObj); err != nil {
		return fmt.Errorf("fetch reference object for %q: %w", name, err)
	}

	actionsURL, ok := linkHref(refObj, "availableActions")
	if !ok {
		log.Printf("No available actions for %q, skipping", name)
		return nil
	}

	var actions []map[string]any
	if err := c.http.GetJSON(ctx, actionsURL, nil, &actions); err != nil {
		return fmt.Errorf("fetch actions for %q: %w", name, err)
	}

	names := make(map[string]bool, len(actions))
	for _, a := range actions {
		if n, ok := a["name"].(string); ok {
			names[n] = true
		}
	}

	if names["Inaktivt"] && names["Låst"] {
		return fmt.Errorf("both 'Inaktivt' and 'Låst' actions available for %q", name)
	}

	var updateFormURL string
	for _, a := range actions {
		n, _ := a["name"].(string)
		if n == "Inaktivt" || n == "Låst" {
			updateFormURL, _ = linkHref(a, "updateFormData")
			break
		}
	}
	if updateFormURL == "" {
		log.Printf("No close action for %q, skipping", name)
		return nil
	}

	var form map[string]any
	if err := c.http.GetJSON(ctx, updateFormURL, nil, &form); err != nil {
		return fmt.Errorf("fetch update form for %q: %w", name, err)
	}

	filled, err := fillRequiredItems(name, form)
	if err != nil {
		return err
	}
	if !filled {
		return nil
	}

	if _, err := c.http.Put(ctx, updateFormURL, form); err != nil {
		return fmt.Errorf("close document %q: %w", name, err)
	}

	return nil
}

// fillRequiredItems sets defaults on required form fields that have no value.
// It returns false when a default cannot be applied and the document should be
// left alone.
func fillRequiredItems(docName string, form map[string]any) (bool, error) {
	items, _ := form["items"].([]any)
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}

		required, _ := item["required"].(bool)
		if !required || item["value"] != nil {
			continue
		}

		label, _ := item["label"].(string)
		def, ok := closeDefaults[label]
		if !ok {
			return false, fmt.Errorf("document %q: no default for required field %q", docName, label)
		}

		possible, _ := item["possibleValues"].([]any)
		var match map[string]any
		for _, pv := range possible {
			value, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			if value["name"] == def {
				match = value
				break
			}
		}

		if match == nil {
			log.Printf("Skipping %q: default %q not among possible values for %q", docName, def, label)
			return false, nil
		}

		log.Printf("Setting default for %q: %s", label, def)
		item["value"] = match
	}

	return true, nil
}
