// Package types provides shared type definitions for the medsearch MCP server.
//
// This package defines the records exchanged with the remote health-services API:
// provider services (packages and single tests), clinical pathways, canonical
// services, providers, typeahead suggestions and smart-search results.
//
// # Core Types
//
// ServiceRecord represents a bookable service as returned by the search endpoints:
//
//	rec := types.ServiceRecord{
//	    ID:          "42",
//	    Name:        "Khám tổng quát",
//	    ServiceType: types.ServiceTypePackage,
//	}
//
// A record is priced either with a single DiscountedPrice or with a list of
// PricingTier values, never both:
//
//	price, ok := rec.EffectivePrice() // discounted_price, or the default tier
//	tier, ok := rec.DefaultTier()     // is_default tier, else the first tier
//
// ScoredRecord wraps a ServiceRecord with the relevance score and rank computed
// for a single search. Scores are non-negative integers; zero means no match.
//
// Branch is a provider location that offers a service, and ServiceDetail
// carries a package together with its component tests.
//
// # Loose JSON
//
// The API is not consistent about scalar types, so ID and Price decode from
// either JSON numbers or strings:
//
//	{"id": 17}          -> ID("17")
//	{"id": "a1b2"}      -> ID("a1b2")
//	{"price": "350000"} -> Price(350000)
//
// Missing optional fields stay at their zero value (nil pointers for
// parent_service_id, discounted_price and provider).
//
// # Validation
//
// The API client validates service records from the search endpoints and
// drops the ones that fail:
//
//	if err := rec.Validate(); err != nil {
//	    // ErrMissingID, ErrMissingName, ErrUnknownType,
//	    // ErrMissingPrice or ErrAmbiguousPrice
//	}
package types
