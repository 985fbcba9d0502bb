package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

func testClient(server *httptest.Server) *Client {
	cfg := httpc.DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return &Client{http: httpc.NewClient(cfg)}
}

func TestConfigURLs(t *testing.T) {
	cfg := &Config{Instance: "nyborg", Environment: "nexus"}
	if got := cfg.TokenURL(); got != "https://iam.nexus.kmd.dk/authx/realms/nyborg/protocol/openid-connect/token" {
		t.Errorf("TokenURL = %q", got)
	}
	if got := cfg.BaseURL(); got != "https://nyborg.nexus.kmd.dk/api/core/mobile/nyborg/v2/" {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestNewRejectsUnknownEnvironment(t *testing.T) {
	_, err := New(context.Background(), &Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Instance:     "nyborg",
		Environment:  "prod",
	})
	if err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestCalendarByName(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/preferences/CROSS_CITIZEN_CALENDAR":
			fmt.Fprintf(w, `[
				{"name":"Rute 1","_links":{"self":{"href":"%s/calendar/1"}}},
				{"name":"Rute 2 Nat","_links":{"self":{"href":"%s/calendar/2"}}}
			]`, server.URL, server.URL)
		case "/calendar/2":
			fmt.Fprintf(w, `{"id":2,"name":"Rute 2 Nat","_links":{"visits":{"href":"%s/calendar/2/visits"}}}`, server.URL)
		case "/calendar/2/visits":
			fmt.Fprint(w, `{"columnResource":{"resources":[
				{"resourceId":"a","visible":true},
				{"resourceId":"b","visible":false},
				{"resourceId":"c","visible":true}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	// Name matching is case-insensitive.
	cal, err := testClient(server).CalendarByName(context.Background(), "rute 2 nat")
	if err != nil {
		t.Fatalf("CalendarByName failed: %v", err)
	}
	if cal.ID.String() != "2" {
		t.Errorf("id = %s", cal.ID)
	}
	if cal.ResourceIDs != "a,-b,c" {
		t.Errorf("resource ids = %q", cal.ResourceIDs)
	}
}

func TestCalendarByNameNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	if _, err := testClient(server).CalendarByName(context.Background(), "Rute 99"); err == nil {
		t.Error("expected error for unknown calendar")
	}
}

func TestSendLetter(t *testing.T) {
	var putBody map[string]any
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/letters/withAttachment" && r.Method == http.MethodGet:
			if r.URL.Query().Get("uid") != "abc-123" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			fmt.Fprintf(w, `{"title":"Afgørelse","_links":{"updateAndSendExternally":{"href":"%s/letters/1/send"}}}`, server.URL)
		case r.URL.Path == "/letters/1/send" && r.Method == http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&putBody); err != nil {
				t.Fatal(err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	if err := testClient(server).SendLetter(context.Background(), "abc-123"); err != nil {
		t.Fatalf("SendLetter failed: %v", err)
	}
	if putBody["title"] != "Afgørelse" {
		t.Errorf("put body = %v", putBody)
	}
}

func TestFillRequiredItems(t *testing.T) {
	form := map[string]any{"items": []any{
		map[string]any{
			"label":    "Betydning for situation/borgerens tilstand",
			"required": true,
			"value":    nil,
			"possibleValues": []any{
				map[string]any{"name": "Forværret"},
				map[string]any{"name": "Uændret"},
			},
		},
		map[string]any{"label": "Notat", "required": false, "value": nil},
	}}

	filled, err := fillRequiredItems("Skema", form)
	if err != nil {
		t.Fatalf("fillRequiredItems failed: %v", err)
	}
	if !filled {
		t.Fatal("expected form to be fillable")
	}

	items := form["items"].([]any)
	value := items[0].(map[string]any)["value"].(map[string]any)
	if value["name"] != "Uændret" {
		t.Errorf("value = %v", value)
	}
}

func TestFillRequiredItemsUnknownField(t *testing.T) {
	form := map[string]any{"items": []any{
		map[string]any{"label": "Ukendt felt", "required": true, "value": nil},
	}}

	if _, err := fillRequiredItems("Skema", form); err == nil {
		t.Error("expected error for required field without default")
	}
}

func TestLinksHref(t *testing.T) {
	links := Links{"self": {Href: "https://example.test/1"}, "empty": {}}
	if href, ok := links.Href("self"); !ok || href != "https://example.test/1" {
		t.Errorf("Href = %q, %v", href, ok)
	}
	if _, ok := links.Href("empty"); ok {
		t.Error("empty href should not resolve")
	}
	if _, ok := links.Href("missing"); ok {
		t.Error("missing relation should not resolve")
	}
}
