package types

import "errors"

// Domain errors for record decoding and validation
var (
	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidPrice = errors.New("invalid price")

	// Service record errors
	ErrMissingID      = errors.New("service id is required")
	ErrMissingName    = errors.New("service name is required")
	ErrUnknownType    = errors.New("unknown service type")
	ErrMissingPrice   = errors.New("service has neither discounted_price nor pricing_data")
	ErrAmbiguousPrice = errors.New("service has both discounted_price and pricing_data")

	// Scored record errors
	ErrInvalidRank  = errors.New("rank must be >= 1")
	ErrInvalidScore = errors.New("relevance score must be >= 0")
)
