// Package datafordeler implements a client for the Danish Datafordeler
// platform, which serves CPR person data over mutual-TLS REST endpoints.
// Access requires a client certificate issued to the municipality.
package datafordeler

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/nyborg-rpa/rpa-core/internal/config"
	httpc "github.com/nyborg-rpa/rpa-core/internal/connector/http"
)

// personsURL is the full-complete current CPR person list endpoint.
const personsURL = "https://s5-certservices.datafordeler.dk/CPR/CPRPersonFullComplete/1/REST/PersonFullCurrentListComplete"

// defaultPageSize matches the service's sweet spot for list queries.
const defaultPageSize = 500

// Client is an authenticated Datafordeler client.
type Client struct {
	http *httpc.Client
}

// New creates a Datafordeler client with the client certificate from the PFX
// file in cfg.
func New(cfg *config.DatafordelerConfig) (*Client, error) {
	if cfg.PFXFile == "" || cfg.PFXPassword == "" {
		return nil, fmt.Errorf("datafordeler: PFX file and password must be set")
	}

	cert, err := loadPFXCertificate(cfg.PFXFile, cfg.PFXPassword)
	if err != nil {
		return nil, err
	}

	clientCfg := httpc.DefaultClientConfig()
	clientCfg.Timeout = 60 * time.Second
	clientCfg.RateLimit = 5
	clientCfg.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
	}

	return &Client{http: httpc.NewClient(clientCfg)}, nil
}

// loadPFXCertificate converts a PKCS#12 bundle into a TLS client certificate,
// keeping any chain certificates.
func loadPFXCertificate(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read pfx %s: %w", path, err)
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode pfx %s: %w", path, err)
	}

	var pemData []byte
	for _, b := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(b)...)
	}

	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("build key pair from pfx %s: %w", path, err)
	}
	return cert, nil
}

type personEnvelope struct {
	Person json.RawMessage `json:"Person"`
}

type personPage struct {
	Personer []personEnvelope `json:"Personer"`
}

// GetPersons queries the current CPR person list. Pagination is handled
// internally; passing a "page" parameter is an error. Historical sub-records
// are pruned from the returned objects.
func (c *Client) GetPersons(ctx context.Context, params url.Values) ([]json.RawMessage, error) {
	if params.Get("page") != "" {
		return nil, fmt.Errorf("datafordeler: pagination is handled internally, do not pass 'page'")
	}

	query := url.Values{"format": {"json"}}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	pageSize := defaultPageSize
	if s := params.Get("pageSize"); s != "" {
		fmt.Sscanf(s, "%d", &pageSize)
	}

	paginator := httpc.NewPagePaginator(personsURL, query, pageSize)

	var persons []json.RawMessage
	req := paginator.FirstPage()
	for req != nil {
		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("query persons: %w", err)
		}

		var page personPage
		if err := resp.JSON(&page); err != nil {
			return nil, fmt.Errorf("parse persons page: %w", err)
		}

		for _, env := range page.Personer {
			pruned, err := prunePerson(env.Person)
			if err != nil {
				return nil, err
			}
			persons = append(persons, pruned)
		}

		paginator.Observe(len(page.Personer))
		req, err = paginator.NextPage(ctx, resp)
		if err != nil {
			return nil, err
		}
	}

	return persons, nil
}

// prunePerson removes historical sub-records and re-encodes the person.
func prunePerson(raw json.RawMessage) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse person: %w", err)
	}
	return json.Marshal(PruneHistorical(obj))
}

// PruneHistorical removes list entries whose nested status is "historisk"
// from a Datafordeler object. Entries are shaped like
// {Navn: {status: "historisk"|"aktuel", ...}}.
func PruneHistorical(obj map[string]any) map[string]any {
	pruned := make(map[string]any, len(obj))
	for key, value := range obj {
		list, ok := value.([]any)
		if !ok {
			pruned[key] = value
			continue
		}

		var kept []any
		for _, entry := range list {
			if !containsHistorical(entry) {
				kept = append(kept, entry)
			}
		}
		pruned[key] = kept
	}
	return pruned
}

// containsHistorical reports whether a nested structure carries a
// status == "historisk" marker anywhere.
func containsHistorical(v any) bool {
	switch value := v.(type) {
	case map[string]any:
		if value["status"] == "historisk" {
			return true
		}
		for _, nested := range value {
			if containsHistorical(nested) {
				return true
			}
		}
	case []any:
		for _, nested := range value {
			if containsHistorical(nested) {
				return true
			}
		}
	}
	return false
}
