// Package api is the HTTP/JSON client for the remote health-service API.
//
// All endpoints are relative to a base URL that includes any /api prefix:
//
//	GET  /search/services?q=      raw candidates for client-side ranking
//	GET  /v2/search?q=            server-ranked packages and services
//	GET  /search/suggestions?q=   typeahead entries
//	GET  /search/popular          popular services
//	GET  /clinical-pathways       clinical pathways
//	GET  /canonical-services      canonical service catalog
//	GET  /providers               provider brands
//	POST /smart-search            pathway/package coverage matching
//	GET  /services/{id}           one service with its package components
//	GET  /services/{id}/branches  branches offering a service
//
// Most endpoints wrap their payload as {success, data}; success=false is
// reported as ErrUnsuccessful. Transport failures and non-2xx responses are
// ErrRequestFailed (a *StatusError for HTTP statuses), undecodable bodies
// ErrMalformedResponse.
//
// Service records from the search and popular endpoints are validated on
// arrival; records with a missing id or name, an unknown type, or a price
// that is neither singular nor tiered are logged and dropped.
//
// # Retry
//
// Transport errors, 5xx and 429 responses are retried with exponential
// backoff (2 attempts, 100ms base delay by default). Other 4xx responses
// and decode failures are returned at once.
//
//	client, err := api.NewClient("https://example.com/api", api.Options{
//	    Timeout: 5 * time.Second,
//	})
//	records, err := client.SearchServices(ctx, textnorm.Normalize("xét nghiệm"))
package api
