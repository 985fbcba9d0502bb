package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// =============================================================================
// SHAREPOINT LISTS
// =============================================================================

// SharePointList is a resolved SharePoint list on which items can be read,
// added and updated.
type SharePointList struct {
	client *Client
	siteID string
	listID string
}

// ListItem is one SharePoint list item with its fields expanded.
type ListItem struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// FieldString returns a field value as a string, empty when absent.
func (i *ListItem) FieldString(name string) string {
	v, ok := i.Fields[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// FieldBool returns a boolean field value, false when absent.
func (i *ListItem) FieldBool(name string) bool {
	b, _ := i.Fields[name].(bool)
	return b
}

// FieldInt returns a numeric field value, zero when absent or not a number.
func (i *ListItem) FieldInt(name string) int {
	switch v := i.Fields[name].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

// SharePointList resolves a list by site URL and display name. The site URL
// is the browser URL of the site, e.g.
// https://nyborg365.sharepoint.com/sites/RPADrift.
func (c *Client) SharePointList(ctx context.Context, siteURL, listName string) (*SharePointList, error) {
	site, err := url.Parse(siteURL)
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("invalid sharepoint site url %q", siteURL)
	}

	var siteDoc struct {
		ID string `json:"id"`
	}
	sitePath := fmt.Sprintf("sites/%s:%s", site.Host, strings.TrimSuffix(site.Path, "/"))
	if err := c.http.GetJSON(ctx, sitePath, nil, &siteDoc); err != nil {
		return nil, fmt.Errorf("resolve sharepoint site %s: %w", siteURL, err)
	}

	// Lists can be addressed by display name as well as by id.
	var listDoc struct {
		ID string `json:"id"`
	}
	listPath := fmt.Sprintf("sites/%s/lists/%s", siteDoc.ID, url.PathEscape(listName))
	if err := c.http.GetJSON(ctx, listPath, nil, &listDoc); err != nil {
		return nil, fmt.Errorf("resolve sharepoint list %q: %w", listName, err)
	}

	return &SharePointList{client: c, siteID: siteDoc.ID, listID: listDoc.ID}, nil
}

func (l *SharePointList) path(suffix string) string {
	return fmt.Sprintf("sites/%s/lists/%s%s", l.siteID, l.listID, suffix)
}

// Items fetches all list items with their fields expanded.
func (l *SharePointList) Items(ctx context.Context) ([]ListItem, error) {
	query := url.Values{"expand": {"fields"}}
	raws, err := l.client.GetPaged(ctx, l.path("/items"), query)
	if err != nil {
		return nil, fmt.Errorf("list sharepoint items: %w", err)
	}

	items := make([]ListItem, 0, len(raws))
	for _, raw := range raws {
		var item ListItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("parse sharepoint item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Item fetches a single list item by id with its fields expanded.
func (l *SharePointList) Item(ctx context.Context, itemID string) (*ListItem, error) {
	var item ListItem
	query := url.Values{"expand": {"fields"}}
	if err := l.client.http.GetJSON(ctx, l.path("/items/"+itemID), query, &item); err != nil {
		return nil, fmt.Errorf("fetch sharepoint item %s: %w", itemID, err)
	}
	return &item, nil
}

// AddItem creates a list item with the given fields.
func (l *SharePointList) AddItem(ctx context.Context, fields map[string]any) error {
	body := map[string]any{"fields": fields}
	if _, err := l.client.http.Post(ctx, l.path("/items"), body); err != nil {
		return fmt.Errorf("add sharepoint item: %w", err)
	}
	return nil
}

// UpdateItemFields patches fields of an existing list item.
func (l *SharePointList) UpdateItemFields(ctx context.Context, itemID string, fields map[string]any) error {
	if _, err := l.client.http.Patch(ctx, l.path("/items/"+itemID+"/fields"), fields); err != nil {
		return fmt.Errorf("update sharepoint item %s: %w", itemID, err)
	}
	return nil
}
