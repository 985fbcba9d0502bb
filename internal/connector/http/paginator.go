package http

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// =============================================================================
// PAGINATION STRATEGIES
// =============================================================================

// Paginator handles API pagination.
type Paginator interface {
	// NextPage returns the request for the next page, or nil if done.
	NextPage(ctx context.Context, resp *Response) (*Request, error)
}

// =============================================================================
// ODATA PAGINATION
// =============================================================================

// ODataPaginator follows @odata.nextLink references (MS Graph, OS2sofd).
type ODataPaginator struct {
	Path  string
	Query url.Values

	// ValueKey is the JSON key holding the page items (default: "value").
	ValueKey string

	// NextKey is the JSON key holding the next page URL (default: "@odata.nextLink").
	NextKey string
}

// NewODataPaginator creates a paginator for OData-style endpoints.
func NewODataPaginator(path string, query url.Values) *ODataPaginator {
	return &ODataPaginator{
		Path:     path,
		Query:    query,
		ValueKey: "value",
		NextKey:  "@odata.nextLink",
	}
}

// FirstPage returns the first page request.
func (p *ODataPaginator) FirstPage() *Request {
	return &Request{
		Method: "GET",
		Path:   p.Path,
		Query:  p.Query,
	}
}

// NextPage returns the next page request based on the response nextLink.
func (p *ODataPaginator) NextPage(ctx context.Context, resp *Response) (*Request, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, err
	}

	raw, ok := data[p.NextKey]
	if !ok {
		return nil, nil
	}

	var next string
	if err := json.Unmarshal(raw, &next); err != nil {
		return nil, err
	}
	if next == "" {
		return nil, nil
	}

	// The nextLink already carries all query parameters.
	return &Request{Method: "GET", Path: next}, nil
}

// Items extracts the page items from a response.
func (p *ODataPaginator) Items(resp *Response) ([]json.RawMessage, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, err
	}

	raw, ok := data[p.ValueKey]
	if !ok {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchAll collects all items across all pages.
func FetchAllOData(ctx context.Context, c *Client, path string, query url.Values) ([]json.RawMessage, error) {
	paginator := NewODataPaginator(path, query)

	var all []json.RawMessage
	req := paginator.FirstPage()
	for req != nil {
		resp, err := c.Do(ctx, req)
		if err != nil {
			return nil, err
		}

		items, err := paginator.Items(resp)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		req, err = paginator.NextPage(ctx, resp)
		if err != nil {
			return nil, err
		}
	}

	return all, nil
}

// =============================================================================
// PAGE-NUMBER PAGINATION
// =============================================================================

// PagePaginator uses 1-based page-number pagination and stops when a page
// comes back shorter than the page size (Datafordeler style).
type PagePaginator struct {
	Path     string
	Query    url.Values
	PageSize int

	// PageKey is the query param for the page number (default: "page").
	PageKey string

	// SizeKey is the query param for the page size (default: "pageSize").
	SizeKey string

	page     int
	lastSize int
}

// NewPagePaginator creates a page-number paginator.
func NewPagePaginator(path string, query url.Values, pageSize int) *PagePaginator {
	return &PagePaginator{
		Path:     path,
		Query:    query,
		PageSize: pageSize,
		PageKey:  "page",
		SizeKey:  "pageSize",
	}
}

// FirstPage returns the first page request.
func (p *PagePaginator) FirstPage() *Request {
	p.page = 1
	return p.pageRequest()
}

func (p *PagePaginator) pageRequest() *Request {
	query := url.Values{}
	for k, vs := range p.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set(p.PageKey, strconv.Itoa(p.page))
	query.Set(p.SizeKey, strconv.Itoa(p.PageSize))
	return &Request{Method: "GET", Path: p.Path, Query: query}
}

// Observe records how many items the current page returned.
func (p *PagePaginator) Observe(count int) {
	p.lastSize = count
}

// NextPage returns the next page request, or nil when the previous page was
// short (or empty).
func (p *PagePaginator) NextPage(ctx context.Context, resp *Response) (*Request, error) {
	if p.lastSize < p.PageSize {
		return nil, nil
	}
	p.page++
	return p.pageRequest(), nil
}
