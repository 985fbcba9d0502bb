// Package nexus implements a client for the KMD Nexus healthcare platform.
// Nexus is a HAL API: most operations start from a well-known path and then
// follow _links hrefs, which are absolute URLs.
package nexus

import (
	"context"
	"fmt"
	"time"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

// Config holds Nexus OAuth2 credentials and instance coordinates.
type Config struct {
	// ClientID and ClientSecret come from the credential store
	// (program "Nexus-Drift" or "Nexus-Test").
	ClientID     string
	ClientSecret string

	// Instance is the {instance}.{environment}.kmd.dk instance, e.g. "nyborg".
	Instance string

	// Environment is "nexus" (production) or "nexus-review".
	Environment string
}

// TokenURL returns the OpenID Connect token endpoint for the instance.
func (c *Config) TokenURL() string {
	return fmt.Sprintf("https://iam.%s.kmd.dk/authx/realms/%s/protocol/openid-connect/token",
		c.Environment, c.Instance)
}

// BaseURL returns the mobile API base URL for the instance.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("https://%s.%s.kmd.dk/api/core/mobile/%s/v2/",
		c.Instance, c.Environment, c.Instance)
}

// Client is an authenticated Nexus API client.
type Client struct {
	http *httpc.Client
}

// New creates a Nexus client. The OAuth2 token is fetched lazily on the first
// request and refreshed automatically.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("nexus: client credentials must be set")
	}
	if cfg.Environment != "nexus" && cfg.Environment != "nexus-review" {
		return nil, fmt.Errorf("nexus: unknown environment %q", cfg.Environment)
	}

	clientCfg := httpc.DefaultClientConfig()
	clientCfg.BaseURL = cfg.BaseURL()
	clientCfg.Timeout = 30 * time.Second
	clientCfg.RateLimit = 5
	clientCfg.Transport = httpc.OAuth2Transport(ctx, cfg.ClientID, cfg.ClientSecret, cfg.TokenURL())

	return &Client{http: httpc.NewClient(clientCfg)}, nil
}

// HTTP exposes the underlying client for link traversal.
func (c *Client) HTTP() *httpc.Client {
	return c.http
}

// =============================================================================
// HAL HELPERS
// =============================================================================

// Link is a single HAL link.
type Link struct {
	Href string `json:"href"`
}

// Links maps HAL relation names to links.
type Links map[string]Link

// Href returns the URL for a relation, or false when absent.
func (l Links) Href(rel string) (string, bool) {
	link, ok := l[rel]
	if !ok || link.Href == "" {
		return "", false
	}
	return link.Href, true
}

// linkHref digs the href for a relation out of a generic HAL document.
func linkHref(doc map[string]any, rel string) (string, bool) {
	links, ok := doc["_links"].(map[string]any)
	if !ok {
		return "", false
	}
	link, ok := links[rel].(map[string]any)
	if !ok {
		return "", false
	}
	href, ok := link["href"].(string)
	return href, ok && href != ""
}
