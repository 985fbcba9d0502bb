// Package graph implements a Microsoft Graph client for the robot tenant:
// mail send/receive, mailbox housekeeping and license (SKU) listing.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

const baseURL = "https://graph.microsoft.com/v1.0"

// Client is an authenticated Microsoft Graph client using the
// client-credentials grant.
type Client struct {
	http *httpc.Client
}

// New creates a Graph client for the application registration in cfg.
func New(ctx context.Context, cfg *config.GraphConfig) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph: tenant id, client id and client secret must be set")
	}

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)

	clientCfg := httpc.DefaultClientConfig()
	clientCfg.BaseURL = baseURL
	clientCfg.Timeout = 30 * time.Second
	clientCfg.Transport = httpc.OAuth2Transport(ctx, cfg.ClientID, cfg.ClientSecret, tokenURL,
		"https://graph.microsoft.com/.default")

	return &Client{http: httpc.NewClient(clientCfg)}, nil
}

// newWithHTTP is used by tests to point the client at a stub server.
func newWithHTTP(c *httpc.Client) *Client {
	return &Client{http: c}
}

// GetPaged fetches all items of a paginated Graph collection, following
// @odata.nextLink until exhausted.
func (c *Client) GetPaged(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	return httpc.FetchAllOData(ctx, c.http, path, query)
}

// SubscribedSKU is a tenant license subscription.
type SubscribedSKU struct {
	SKUPartNumber string `json:"skuPartNumber"`
	ConsumedUnits int    `json:"consumedUnits"`
	PrepaidUnits  struct {
		Enabled int `json:"enabled"`
	} `json:"prepaidUnits"`
}

// FreeUnits returns the number of unassigned licenses.
func (s *SubscribedSKU) FreeUnits() int {
	return s.PrepaidUnits.Enabled - s.ConsumedUnits
}

// SubscribedSKUs lists the tenant's license subscriptions.
func (c *Client) SubscribedSKUs(ctx context.Context) ([]SubscribedSKU, error) {
	items, err := c.GetPaged(ctx, "subscribedSkus", nil)
	if err != nil {
		return nil, fmt.Errorf("list subscribed skus: %w", err)
	}

	skus := make([]SubscribedSKU, 0, len(items))
	for _, raw := range items {
		var sku SubscribedSKU
		if err := json.Unmarshal(raw, &sku); err != nil {
			return nil, fmt.Errorf("parse sku: %w", err)
		}
		skus = append(skus, sku)
	}
	return skus, nil
}
