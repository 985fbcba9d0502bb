// Package rollekatalog implements a client for OS2rollekatalog, the
// municipal role catalogue.
package rollekatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

// Config holds rollekatalog connection settings.
type Config struct {
	// Kommune is the {kommune}.rollekatalog.dk subdomain.
	Kommune string
	APIKey  string
}

// Client is an authenticated rollekatalog client.
type Client struct {
	http *httpc.Client
}

// New creates a rollekatalog client.
func New(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rollekatalog: API key must be set")
	}

	clientCfg := httpc.DefaultClientConfig()
	clientCfg.BaseURL = fmt.Sprintf("https://%s.rollekatalog.dk/api", cfg.Kommune)
	clientCfg.Auth = httpc.APIKey{Key: cfg.APIKey}
	clientCfg.Timeout = 30 * time.Second

	return &Client{http: httpc.NewClient(clientCfg)}, nil
}

// UserRole is a role definition.
type UserRole struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// Assignment is a user assigned to a role.
type Assignment struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// RoleDetails is a role with its resolved assignments.
type RoleDetails struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Assignments []Assignment `json:"assignments"`
}

// UserRoles fetches all role definitions.
func (c *Client) UserRoles(ctx context.Context) ([]UserRole, error) {
	var roles []UserRole
	if err := c.http.GetJSON(ctx, "read/userroles", nil, &roles); err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return roles, nil
}

// RoleDetailsByName resolves a role by its unique name and fetches its
// assignments, including indirect ones.
func (c *Client) RoleDetailsByName(ctx context.Context, roleName string) (*RoleDetails, error) {
	roles, err := c.UserRoles(ctx)
	if err != nil {
		return nil, err
	}

	var matches []UserRole
	for _, r := range roles {
		if r.Name == roleName {
			matches = append(matches, r)
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		return nil, fmt.Errorf("rollekatalog: more than one role named %q", roleName)
	}

	query := url.Values{
		"indirectRoles":   {"true"},
		"withDescription": {"true"},
	}

	var details RoleDetails
	if err := c.http.GetJSON(ctx, "read/assigned/"+matches[0].ID.String(), query, &details); err != nil {
		return nil, fmt.Errorf("fetch role details for %q: %w", roleName, err)
	}
	return &details, nil
}
