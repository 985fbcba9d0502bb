package nexus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MedcomLetter is one Medcom document on an activity list, e.g. a discharge
// report sent by a hospital.
type MedcomLetter struct {
	// MedcomID is the id of the referenced Medcom document, taken from the
	// last path segment of the referencedObject link.
	MedcomID string
	// Name is the activity entry title.
	Name string
	// PatientID identifies the citizen the letter belongs to.
	PatientID string
	// Date is when the letter arrived. Zero when Nexus sends an
	// unparseable timestamp.
	Date time.Time
	// ContentHref points at the letter content document.
	ContentHref string
}

type activityListRef struct {
	Name  string `json:"name"`
	Links Links  `json:"_links"`
}

type activityPages struct {
	Pages []struct {
		Links Links `json:"_links"`
	} `json:"pages"`
}

type activityEntry struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Patients []struct {
		ID json.Number `json:"id"`
	} `json:"patients"`
	Links Links `json:"_links"`
}

// ActivityLetters lists the Medcom letters on a named activity list received
// between from and to. The activity name must match exactly.
func (c *Client) ActivityLetters(ctx context.Context, activityName string, from, to time.Time) ([]MedcomLetter, error) {
	var lists []activityListRef
	if err := c.http.GetJSON(ctx, "preferences/ACTIVITY_LIST/", nil, &lists); err != nil {
		return nil, fmt.Errorf("list activity lists: %w", err)
	}

	var selfURL string
	for _, ref := range lists {
		if ref.Name == activityName {
			selfURL, _ = ref.Links.Href("self")
			break
		}
	}
	if selfURL == "" {
		return nil, fmt.Errorf("activity list %q not found", activityName)
	}

	var list map[string]any
	if err := c.http.GetJSON(ctx, selfURL, nil, &list); err != nil {
		return nil, fmt.Errorf("fetch activity list %q: %w", activityName, err)
	}
	contentURL, ok := linkHref(list, "content")
	if !ok {
		return nil, fmt.Errorf("activity list %q has no content link", activityName)
	}

	query := url.Values{
		"pageSize": {"50"},
		"from":     {from.Format("2006-01-02T15:04:05") + ".000Z"},
		"to":       {to.Format("2006-01-02T15:04:05") + ".999Z"},
	}
	var pages activityPages
	if err := c.http.GetJSON(ctx, contentURL, query, &pages); err != nil {
		return nil, fmt.Errorf("fetch activity pages for %q: %w", activityName, err)
	}

	var letters []MedcomLetter
	for _, page := range pages.Pages {
		pageURL, ok := page.Links.Href("content")
		if !ok {
			continue
		}

		var entries []activityEntry
		if err := c.http.GetJSON(ctx, pageURL, nil, &entries); err != nil {
			return nil, fmt.Errorf("fetch activity page for %q: %w", activityName, err)
		}

		for _, entry := range entries {
			refURL, ok := entry.Links.Href("referencedObject")
			if !ok || len(entry.Patients) == 0 {
				continue
			}
			segments := strings.Split(strings.TrimSuffix(refURL, "/"), "/")
			letters = append(letters, MedcomLetter{
				MedcomID:    segments[len(segments)-1],
				Name:        entry.Name,
				PatientID:   entry.Patients[0].ID.String(),
				Date:        parseActivityDate(entry.Date),
				ContentHref: refURL,
			})
		}
	}

	return letters, nil
}

// parseActivityDate parses the timestamps Nexus puts on activity entries.
// Unparseable values become the zero time rather than failing the scan.
func parseActivityDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LetterContent fetches a letter document by its referencedObject link and
// returns the decoded body text.
func (c *Client) LetterContent(ctx context.Context, href string) (string, error) {
	var doc struct {
		Raw string `json:"raw"`
	}
	if err := c.http.GetJSON(ctx, href, nil, &doc); err != nil {
		return "", fmt.Errorf("fetch letter content: %w", err)
	}

	body, err := base64.StdEncoding.DecodeString(doc.Raw)
	if err != nil {
		return "", fmt.Errorf("decode letter content: %w", err)
	}
	return string(body), nil
}
