package sofd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

func testClient(server *httptest.Server) *Client {
	cfg := httpc.DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.Auth = httpc.APIKey{Key: "test-key"}
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return &Client{http: httpc.NewClient(cfg)}
}

func TestPersonUsername(t *testing.T) {
	p := Person{Users: []UserAccount{
		{UserID: "anne@nyborg.dk"},
		{UserID: "ANSO"},
	}}
	username, ok := p.Username()
	if !ok || username != "anso" {
		t.Errorf("Username = %q, %v", username, ok)
	}

	empty := Person{}
	if _, ok := empty.Username(); ok {
		t.Error("expected no username")
	}
}

func TestPersonEmail(t *testing.T) {
	p := Person{
		Users:         []UserAccount{{UserID: "anso"}},
		DisabledUsers: []UserAccount{{UserID: "anne@nyborg.dk"}},
	}
	email, ok := p.Email()
	if !ok || email != "anne@nyborg.dk" {
		t.Errorf("Email = %q, %v", email, ok)
	}
}

func TestOrgUnitOverrideTag(t *testing.T) {
	org := OrgUnit{Tags: []Tag{{Tag: "rpa-override", CustomValue: "Hjemmeplejen"}}}
	value, present := org.OverrideTag()
	if !present || value != "Hjemmeplejen" {
		t.Errorf("OverrideTag = %q, %v", value, present)
	}

	plain := OrgUnit{Tags: []Tag{{Tag: "other"}}}
	if _, present := plain.OverrideTag(); present {
		t.Error("expected no override tag")
	}
}

func TestPersonByCPR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("ApiKey") != "test-key" {
			t.Errorf("ApiKey header = %q", r.Header.Get("ApiKey"))
		}
		if r.URL.Path != "/odata/Persons" {
			t.Errorf("path = %s", r.URL.Path)
		}
		filter := r.URL.Query().Get("$filter")
		if !strings.Contains(filter, "Cpr eq '0101805566'") {
			t.Errorf("filter = %q", filter)
		}
		fmt.Fprint(w, `{"value":[{"Uuid":"abc","Cpr":"0101805566","Firstname":"Anne","Surname":"Jensen","Users":[{"UserId":"anso"}]}]}`)
	}))
	defer server.Close()

	person, err := testClient(server).PersonByCPR(context.Background(), "0101805566")
	if err != nil {
		t.Fatalf("PersonByCPR failed: %v", err)
	}
	if person == nil || person.UUID != "abc" || person.Firstname != "Anne" {
		t.Errorf("person = %+v", person)
	}
}

func TestPersonByCPRNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer server.Close()

	person, err := testClient(server).PersonByCPR(context.Background(), "0101805566")
	if err != nil {
		t.Fatalf("PersonByCPR failed: %v", err)
	}
	if person != nil {
		t.Errorf("person = %+v, want nil", person)
	}
}

func TestOrgPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		switch {
		case strings.Contains(filter, "'parent'"):
			fmt.Fprint(w, `{"value":[{"Uuid":"parent","Name":"Sundhed og Ældre","ParentUuid":"root"}]}`)
		case strings.Contains(filter, "'root'"):
			fmt.Fprint(w, `{"value":[{"Uuid":"root","Name":"Nyborg Kommune"}]}`)
		default:
			t.Errorf("unexpected filter %q", filter)
			fmt.Fprint(w, `{"value":[]}`)
		}
	}))
	defer server.Close()

	org := &OrgUnit{UUID: "leaf", Name: "Hjemmeplejen", ParentUUID: "parent"}
	path, err := testClient(server).OrgPath(context.Background(), org, " > ")
	if err != nil {
		t.Fatalf("OrgPath failed: %v", err)
	}
	if path != "Nyborg Kommune > Sundhed og Ældre > Hjemmeplejen" {
		t.Errorf("path = %q", path)
	}
}

func TestPatchOrgUnit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/v2/orgUnits/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	changed, err := testClient(server).PatchOrgUnit(context.Background(), "abc", map[string]any{"pnr": "1001"})
	if err != nil {
		t.Fatalf("PatchOrgUnit failed: %v", err)
	}
	if !changed {
		t.Error("expected changed = true for 200")
	}
}
