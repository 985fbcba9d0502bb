package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// CalendarRef is an entry in the cross-citizen calendar list.
type CalendarRef struct {
	Name  string `json:"name"`
	Links Links  `json:"_links"`
}

// Calendar is a resolved cross-citizen calendar with its visit resources.
type Calendar struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Links       Links       `json:"_links"`
	ResourceIDs string      `json:"-"`
}

type visitsData struct {
	ColumnResource struct {
		Resources []struct {
			ResourceID string `json:"resourceId"`
			Visible    bool   `json:"visible"`
		} `json:"resources"`
	} `json:"columnResource"`
}

// Calendars lists the cross-citizen calendars.
func (c *Client) Calendars(ctx context.Context) ([]CalendarRef, error) {
	var refs []CalendarRef
	if err := c.http.GetJSON(ctx, "preferences/CROSS_CITIZEN_CALENDAR", nil, &refs); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return refs, nil
}

// CalendarByName resolves a calendar by its (case-insensitive) name and
// loads its visit resource IDs. Hidden resources get a "-" prefix, which the
// print endpoint interprets as excluded.
func (c *Client) CalendarByName(ctx context.Context, name string) (*Calendar, error) {
	refs, err := c.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	var ref *CalendarRef
	for i := range refs {
		if strings.EqualFold(refs[i].Name, name) {
			ref = &refs[i]
			break
		}
	}
	if ref == nil {
		return nil, fmt.Errorf("calendar %q not found", name)
	}

	self, ok := ref.Links.Href("self")
	if !ok {
		return nil, fmt.Errorf("calendar %q has no self link", name)
	}

	var cal Calendar
	if err := c.http.GetJSON(ctx, self, nil, &cal); err != nil {
		return nil, fmt.Errorf("fetch calendar %q: %w", name, err)
	}

	visitsURL, ok := cal.Links.Href("visits")
	if !ok {
		return nil, fmt.Errorf("calendar %q has no visits link", name)
	}

	var visits visitsData
	if err := c.http.GetJSON(ctx, visitsURL, nil, &visits); err != nil {
		return nil, fmt.Errorf("fetch visits for calendar %q: %w", name, err)
	}

	ids := make([]string, 0, len(visits.ColumnResource.Resources))
	for _, r := range visits.ColumnResource.Resources {
		if r.Visible {
			ids = append(ids, r.ResourceID)
		} else {
			ids = append(ids, "-"+r.ResourceID)
		}
	}
	cal.ResourceIDs = strings.Join(ids, ",")

	return &cal, nil
}

// printListRequest is the body for the calendar print endpoint.
type printListRequest struct {
	FilterID                string  `json:"filterId"`
	From                    string  `json:"from"`
	To                      string  `json:"to"`
	CalendarMode            string  `json:"calendarMode"`
	ResourceIDs             string  `json:"resourceIds"`
	PlannedGrantStatuses    string  `json:"plannedGrantStatuses"`
	RegisteredGrantStatuses string  `json:"registeredGrantStatuses"`
	ZoomResource            *string `json:"zoomResource"`
}

type printListState struct {
	ResultReady bool  `json:"resultReady"`
	Links       Links `json:"_links"`
}

// ExportCalendarPDF renders a day of a calendar as PDF and writes it to dest.
// Night lists are rendered at 23:00 UTC, day lists at 11:00 UTC. The render
// result is polled for up to a minute before giving up.
func (c *Client) ExportCalendarPDF(ctx context.Context, cal *Calendar, date time.Time, night bool, dest string) error {
	hour := 11
	if night {
		hour = 23
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, time.UTC)
	stamp := at.Format("2006-01-02T15:04:05.000Z")

	body := printListRequest{
		FilterID:     cal.ID.String(),
		From:         stamp,
		To:           stamp,
		CalendarMode: "PLANNING_MODE",
		ResourceIDs:  cal.ResourceIDs,
	}

	resp, err := c.http.Post(ctx, "calendar/printList/EVENT", body)
	if err != nil {
		return fmt.Errorf("request calendar pdf: %w", err)
	}

	var state printListState
	if err := resp.JSON(&state); err != nil {
		return fmt.Errorf("parse print state: %w", err)
	}

	deadline := time.Now().Add(60 * time.Second)
	for !state.ResultReady {
		if time.Now().After(deadline) {
			return fmt.Errorf("calendar pdf not ready after 60s for %s on %s", cal.ID, stamp)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}

		self, ok := state.Links.Href("self")
		if !ok {
			return fmt.Errorf("print state has no self link")
		}
		if err := c.http.GetJSON(ctx, self, nil, &state); err != nil {
			return fmt.Errorf("poll print state: %w", err)
		}
	}

	result, ok := state.Links.Href("result")
	if !ok {
		return fmt.Errorf("print state has no result link")
	}

	reader, err := c.http.Stream(ctx, result, 180*time.Second)
	if err != nil {
		return fmt.Errorf("download calendar pdf: %w", err)
	}
	defer reader.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	return nil
}
