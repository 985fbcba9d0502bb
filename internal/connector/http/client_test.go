package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func testClient(server *httptest.Server) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return NewClient(cfg)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/persons" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("cpr") != "0101805566" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"name":"Anne"}`)
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	query := url.Values{"cpr": {"0101805566"}}
	if err := testClient(server).GetJSON(context.Background(), "/api/persons", query, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Name != "Anne" {
		t.Errorf("name = %q", out.Name)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	resp, err := testClient(server).Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server).Get(context.Background(), "/", nil)
	httpErr, ok := err.(*HTTPError)
	if !ok {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if !httpErr.IsNotFound() {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 404)", calls.Load())
	}
}

func TestNoFollowRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = server.URL
	cfg.NoFollowRedirect = true

	resp, err := NewClient(cfg).Get(context.Background(), "/", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Headers.Get("Location"); loc != "/elsewhere" {
		t.Errorf("location = %q", loc)
	}
}

func TestPostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("username") != "robot" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	form := url.Values{"username": {"robot"}}
	if _, err := testClient(server).PostForm(context.Background(), "/login", form); err != nil {
		t.Fatalf("PostForm failed: %v", err)
	}
}

func TestFetchAllOData(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/persons":
			fmt.Fprintf(w, `{"value":[{"id":1},{"id":2}],"@odata.nextLink":"%s/persons2"}`, server.URL)
		case "/persons2":
			fmt.Fprint(w, `{"value":[{"id":3}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	items, err := FetchAllOData(context.Background(), testClient(server), "/persons", nil)
	if err != nil {
		t.Fatalf("FetchAllOData failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	var last struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(items[2], &last); err != nil {
		t.Fatal(err)
	}
	if last.ID != 3 {
		t.Errorf("last id = %d", last.ID)
	}
}

func TestPagePaginator(t *testing.T) {
	p := NewPagePaginator("/adresser", url.Values{"kommunekode": {"450"}}, 2)

	req := p.FirstPage()
	if req.Query.Get("page") != "1" || req.Query.Get("pageSize") != "2" {
		t.Errorf("first page query = %v", req.Query)
	}
	if req.Query.Get("kommunekode") != "450" {
		t.Errorf("first page query = %v", req.Query)
	}

	// Full page: continue.
	p.Observe(2)
	req, err := p.NextPage(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if req == nil || req.Query.Get("page") != "2" {
		t.Errorf("next page = %+v", req)
	}

	// Short page: stop.
	p.Observe(1)
	req, err = p.NextPage(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if req != nil {
		t.Errorf("expected pagination to stop, got %+v", req)
	}
}
