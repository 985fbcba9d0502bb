// Package sofd implements a client for OS2sofd, the municipal organisation
// and employee registry. Reads go through the OData API; updates use the
// api/v2 endpoints.
package sofd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

// personExpand is the standard expansion set for person lookups.
const personExpand = "Affiliations,Users,Photo,Phones,Children,AuthorizationCodes,Substitutes,DisabledUsers"

// Config holds SOFD connection settings.
type Config struct {
	// Kommune is the {kommune}.sofd.io subdomain.
	Kommune string
	APIKey  string
}

// Client is an authenticated OS2sofd client.
type Client struct {
	http *httpc.Client
}

// New creates a SOFD client.
func New(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sofd: API key must be set")
	}

	clientCfg := httpc.DefaultClientConfig()
	clientCfg.BaseURL = fmt.Sprintf("https://%s.sofd.io", cfg.Kommune)
	clientCfg.Auth = httpc.APIKey{Key: cfg.APIKey}
	clientCfg.Timeout = 30 * time.Second

	return &Client{http: httpc.NewClient(clientCfg)}, nil
}

// =============================================================================
// TYPES
// =============================================================================

// UserAccount is a user login attached to a person.
type UserAccount struct {
	UserID string `json:"UserId"`
}

// Person is a SOFD person record. Only the fields the jobs consume are typed.
type Person struct {
	UUID          string        `json:"Uuid"`
	CPR           string        `json:"Cpr"`
	Firstname     string        `json:"Firstname"`
	Surname       string        `json:"Surname"`
	Users         []UserAccount `json:"Users"`
	DisabledUsers []UserAccount `json:"DisabledUsers"`
}

// Username returns the first plain (non-email) user id, lowercased.
func (p *Person) Username() (string, bool) {
	for _, u := range p.Users {
		if !strings.Contains(u.UserID, "@") {
			return strings.ToLower(u.UserID), true
		}
	}
	return "", false
}

// Email returns the first user id that looks like an email address, checking
// active users before disabled ones.
func (p *Person) Email() (string, bool) {
	for _, u := range p.Users {
		if strings.Contains(u.UserID, "@") {
			return u.UserID, true
		}
	}
	for _, u := range p.DisabledUsers {
		if strings.Contains(u.UserID, "@") {
			return u.UserID, true
		}
	}
	return "", false
}

// Tag is an org unit tag.
type Tag struct {
	Tag         string `json:"Tag"`
	CustomValue string `json:"CustomValue"`
}

// OrgUnit is a SOFD organisational unit.
type OrgUnit struct {
	UUID       string `json:"Uuid"`
	Name       string `json:"Name"`
	ParentUUID string `json:"ParentUuid"`
	Tags       []Tag  `json:"Tags"`
}

// OverrideTag reports the rpa-override tag state: present and its value.
func (o *OrgUnit) OverrideTag() (value string, present bool) {
	for _, t := range o.Tags {
		if t.Tag == "rpa-override" {
			return t.CustomValue, true
		}
	}
	return "", false
}

// =============================================================================
// PERSON LOOKUPS
// =============================================================================

// PersonByCPR fetches a person by CPR number, or nil when not found.
func (c *Client) PersonByCPR(ctx context.Context, cpr string) (*Person, error) {
	return c.queryPerson(ctx, fmt.Sprintf("Cpr eq '%s'", cpr))
}

// PersonByUsername fetches a person by user id, checking disabled users too.
func (c *Client) PersonByUsername(ctx context.Context, username string) (*Person, error) {
	filter := fmt.Sprintf(
		"Users/any(u: u/UserId eq '%s') or DisabledUsers/any(d: d/UserId eq '%s')",
		username, username)
	return c.queryPerson(ctx, filter)
}

// PersonByUUID fetches a person by UUID, or nil when not found.
func (c *Client) PersonByUUID(ctx context.Context, uuid string) (*Person, error) {
	return c.queryPerson(ctx, fmt.Sprintf("Uuid eq '%s'", uuid))
}

func (c *Client) queryPerson(ctx context.Context, filter string) (*Person, error) {
	query := url.Values{
		"$filter": {filter},
		"$top":    {"1"},
		"$expand": {personExpand},
	}

	var data struct {
		Value []Person `json:"value"`
	}
	if err := c.http.GetJSON(ctx, "odata/Persons", query, &data); err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}

	if len(data.Value) == 0 {
		return nil, nil
	}
	return &data.Value[0], nil
}

// =============================================================================
// ORG UNITS
// =============================================================================

// OrgUnits fetches all organisational units with manager, address and tag
// expansions.
func (c *Client) OrgUnits(ctx context.Context) ([]OrgUnit, error) {
	query := url.Values{
		"$expand": {"Manager,Addresses,phones,Tags"},
	}

	var data struct {
		Value []OrgUnit `json:"value"`
	}
	if err := c.http.GetJSON(ctx, "odata/OrgUnits", query, &data); err != nil {
		return nil, fmt.Errorf("query org units: %w", err)
	}
	return data.Value, nil
}

// OrgUnitByUUID fetches one organisational unit, or nil when not found.
func (c *Client) OrgUnitByUUID(ctx context.Context, uuid string) (*OrgUnit, error) {
	query := url.Values{
		"$filter": {fmt.Sprintf("uuid eq '%s'", uuid)},
		"$expand": {"Manager,Addresses,phones,Tags"},
	}

	var data struct {
		Value []OrgUnit `json:"value"`
	}
	if err := c.http.GetJSON(ctx, "odata/OrgUnits/", query, &data); err != nil {
		return nil, fmt.Errorf("query org unit %s: %w", uuid, err)
	}

	if len(data.Value) == 0 {
		return nil, nil
	}
	return &data.Value[0], nil
}

// OrgPath builds the full path of an org unit by walking its parents,
// root first.
func (c *Client) OrgPath(ctx context.Context, org *OrgUnit, separator string) (string, error) {
	names := []string{org.Name}

	parent := org.ParentUUID
	for parent != "" {
		next, err := c.OrgUnitByUUID(ctx, parent)
		if err != nil {
			return "", err
		}
		if next == nil {
			return "", fmt.Errorf("org unit %s not found while building path", parent)
		}
		names = append(names, next.Name)
		parent = next.ParentUUID
	}

	// reverse to root-first order
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	return strings.Join(names, separator), nil
}

// AssignManager sets a person as the manager of an org unit.
func (c *Client) AssignManager(ctx context.Context, orgUnitUUID, personUUID string) error {
	body := map[string]string{
		"orgUnitUuid": orgUnitUUID,
		"managerUuid": personUUID,
	}
	if _, err := c.http.Post(ctx, "api/manager/orgUnitManagers", body); err != nil {
		return fmt.Errorf("assign manager: %w", err)
	}
	return nil
}

// PatchOrgUnit updates fields of an org unit through the v2 API and reports
// whether data actually changed (200/204).
func (c *Client) PatchOrgUnit(ctx context.Context, uuid string, fields map[string]any) (bool, error) {
	resp, err := c.http.Patch(ctx, "api/v2/orgUnits/"+uuid, fields)
	if err != nil {
		return false, fmt.Errorf("patch org unit %s: %w", uuid, err)
	}
	return resp.StatusCode == 200 || resp.StatusCode == 204, nil
}
