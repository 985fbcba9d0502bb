package http

import (
	"context"
	"encoding/base64"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// =============================================================================
// AUTHENTICATION STRATEGIES
// =============================================================================

// AuthConfig represents authentication configuration.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth represents no authentication.
type NoAuth struct{}

func (a NoAuth) Apply(req *http.Request) {}

// BasicAuth uses HTTP Basic Authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds Basic auth header to the request.
func (a BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// BearerToken uses Bearer token authentication.
type BearerToken struct {
	Token string
}

// Apply adds Bearer token header to the request.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// APIKey uses API key authentication. The OS2 products (SOFD,
// rollekatalog) expect the key in an "ApiKey" header.
type APIKey struct {
	Key    string
	Header string // Header name (default: ApiKey)
}

// Apply adds the API key header to the request.
func (a APIKey) Apply(req *http.Request) {
	if a.Key == "" {
		return
	}
	header := a.Header
	if header == "" {
		header = "ApiKey"
	}
	req.Header.Set(header, a.Key)
}

// =============================================================================
// OAUTH2 CLIENT CREDENTIALS
// =============================================================================

// OAuth2Transport returns a RoundTripper that injects tokens obtained via the
// OAuth2 client-credentials grant. Tokens are fetched lazily and refreshed
// before expiry. Used by the Nexus and MS Graph connectors.
func OAuth2Transport(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) http.RoundTripper {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &oauth2.Transport{
		Source: cfg.TokenSource(ctx),
	}
}
