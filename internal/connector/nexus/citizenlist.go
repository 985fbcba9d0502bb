package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// citizenListTimeout bounds the content fetch. Rendering a citizen list view
// can take Nexus a couple of minutes.
const citizenListTimeout = 180 * time.Second

type citizenListRef struct {
	Name  string `json:"name"`
	Links Links  `json:"_links"`
}

type citizenListView struct {
	Pages []struct {
		Links Links `json:"_links"`
	} `json:"pages"`
}

// CitizenListPatientIDs resolves a citizen list by name and returns the set
// of patient ids on it. The ids are read off the patientData links of the
// view pages, so the pages themselves are never fetched.
func (c *Client) CitizenListPatientIDs(ctx context.Context, listName string) (map[string]bool, error) {
	var lists []citizenListRef
	if err := c.http.GetJSON(ctx, "preferences/CITIZEN_LIST", nil, &lists); err != nil {
		return nil, fmt.Errorf("list citizen lists: %w", err)
	}

	var selfURL string
	for _, ref := range lists {
		if ref.Name == listName {
			selfURL, _ = ref.Links.Href("self")
			break
		}
	}
	if selfURL == "" {
		return nil, fmt.Errorf("citizen list %q not found", listName)
	}

	var list map[string]any
	if err := c.http.GetJSON(ctx, selfURL, nil, &list); err != nil {
		return nil, fmt.Errorf("fetch citizen list %q: %w", listName, err)
	}
	contentURL, ok := linkHref(list, "content")
	if !ok {
		return nil, fmt.Errorf("citizen list %q has no content link", listName)
	}

	reader, err := c.http.Stream(ctx, contentURL, citizenListTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch citizen list view %q: %w", listName, err)
	}
	defer reader.Close()

	var view citizenListView
	if err := json.NewDecoder(reader).Decode(&view); err != nil {
		return nil, fmt.Errorf("parse citizen list view %q: %w", listName, err)
	}

	ids := make(map[string]bool)
	for _, page := range view.Pages {
		href, ok := page.Links.Href("patientData")
		if !ok {
			continue
		}
		for _, id := range patientDataIDs(href) {
			ids[id] = true
		}
	}
	return ids, nil
}

// patientDataIDs extracts the patient ids packed into the ids query parameter
// of a patientData link.
func patientDataIDs(href string) []string {
	u, err := url.Parse(href)
	if err != nil {
		return nil
	}

	var ids []string
	for _, id := range strings.Split(u.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
