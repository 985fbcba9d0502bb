// Package autreg implements a scraping client for autregweb.sst.dk, the
// Danish health authority's authorization registry. The registry has no API;
// records are read out of the rendered HTML pages.
package autreg

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

const baseURL = "https://autregweb.sst.dk"

// noResultsMarker appears on the search result page when nothing matched.
const noResultsMarker = "Søgningen gav ingen resultater"

// Authorization is a practitioner authorization record.
type Authorization struct {
	ID               string
	Status           string
	FirstNames       string
	LastName         string
	Birthdate        time.Time
	Profession       string
	AuthorizationID  string
	EducationCountry string
}

// FullName returns "first names last name".
func (a *Authorization) FullName() string {
	return a.FirstNames + " " + a.LastName
}

// Valid reports whether the registry marks the authorization as valid.
func (a *Authorization) Valid() bool {
	return a.Status == "Autorisation gyldig."
}

// Client scrapes the authorization registry.
type Client struct {
	http *httpc.Client
}

// New creates a registry client. Redirects are not followed: a search with a
// single hit answers 302 to the record page, and the ID is taken from the
// Location header.
func New() *Client {
	cfg := httpc.DefaultClientConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	cfg.NoFollowRedirect = true

	return &Client{http: httpc.NewClient(cfg)}
}

// newWithHTTP is used by tests to point the client at a stub server.
func newWithHTTP(c *httpc.Client) *Client {
	return &Client{http: c}
}

// Authorization fetches an authorization record by registry ID.
func (c *Client) Authorization(ctx context.Context, id string) (*Authorization, error) {
	resp, err := c.http.Get(ctx, "Authorization.aspx", url.Values{"id": {id}})
	if err != nil {
		return nil, fmt.Errorf("fetch authorization %s: %w", id, err)
	}

	auth, err := parsePractitionerTable(string(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("authorization %s: %w", id, err)
	}
	auth.ID = id

	return auth, nil
}

// Search finds authorization IDs by name and minimum birthdate.
func (c *Client) Search(ctx context.Context, name string, birthdate time.Time) ([]string, error) {
	query := url.Values{
		"name":     {name},
		"birthmin": {birthdate.Format("02012006")},
	}

	resp, err := c.http.Get(ctx, "AuthorizationSearchResult.aspx", query)
	if err != nil {
		return nil, fmt.Errorf("search authorizations: %w", err)
	}

	// Direct hit: redirect straight to the record page.
	if resp.StatusCode == 302 {
		location := resp.Headers.Get("Location")
		if id := idFromLink(location); id != "" {
			return []string{id}, nil
		}
		return nil, fmt.Errorf("search redirect without id: %q", location)
	}

	markup := string(resp.Body)
	if strings.Contains(markup, noResultsMarker) {
		return nil, nil
	}

	return parseSearchResults(markup)
}

// idFromLink extracts the id query parameter from a record link.
func idFromLink(link string) string {
	_, id, ok := strings.Cut(link, "id=")
	if !ok {
		return ""
	}
	return id
}

// =============================================================================
// HTML PARSING
// =============================================================================

// parsePractitionerTable reads the <table class="Practitioner"> rows. Each row
// is "Label: value"; the values appear in a fixed order.
func parsePractitionerTable(markup string) (*Authorization, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "Practitioner")
	})
	if table == nil {
		return nil, fmt.Errorf("no practitioner table found")
	}

	var values []string
	for _, row := range findAll(table, "tr") {
		text := textContent(row)
		if i := strings.LastIndex(text, ":"); i >= 0 {
			text = text[i+1:]
		}
		values = append(values, strings.TrimSpace(text))
	}

	if len(values) < 9 {
		return nil, fmt.Errorf("practitioner table has %d rows, expected at least 9", len(values))
	}

	birthdate, err := time.Parse("02-01-2006", values[4])
	if err != nil {
		return nil, fmt.Errorf("parse birthdate %q: %w", values[4], err)
	}

	return &Authorization{
		Status:           values[1],
		FirstNames:       values[2],
		LastName:         values[3],
		Birthdate:        birthdate,
		Profession:       values[5],
		AuthorizationID:  values[7],
		EducationCountry: values[8],
	}, nil
}

// parseSearchResults extracts record IDs from the search result table inside
// <div class="ClientSearchResults">, skipping the header row.
func parseSearchResults(markup string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	div := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "ClientSearchResults")
	})
	if div == nil {
		return nil, fmt.Errorf("no search results container found")
	}

	rows := findAll(div, "tr")
	if len(rows) < 2 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows[1:] {
		link := findNode(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a"
		})
		if link == nil {
			continue
		}
		if id := idFromLink(attr(link, "href")); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// --- node helpers ---

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			nodes = append(nodes, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return nodes
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
