// Package http provides the shared HTTP client for the municipal system connectors.
// Connectors like Nexus, SOFD and MS Graph are built on top of it.
//
// Structure:
//
//	client.go     - HTTP client with rate limiting and retry
//	auth.go       - Authentication strategies (Basic, Bearer, ApiKey, OAuth2)
//	paginator.go  - Pagination helpers (OData nextLink, page-number)
package http
