// Package sources provides quote source interfaces and implementations.
package sources

import "errors"

var (
	// ErrNoQuotesAvailable indicates that no quotes are available from the source.
	ErrNoQuotesAvailable = errors.New("no quotes available")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrAPIError indicates an API error.
	ErrAPIError = errors.New("API error")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrUnknownCommodity indicates a commodity name that cannot be resolved.
	ErrUnknownCommodity = errors.New("unknown commodity")
	// ErrNoCommoditiesRequested indicates an empty commodity set.
	ErrNoCommoditiesRequested = errors.New("no commodities requested")
	// ErrNonPositivePrice indicates a zero or negative price value.
	ErrNonPositivePrice = errors.New("price must be positive")
	// ErrUnsupportedCurrency indicates a currency other than USD or KES.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrAPIKeyRequired indicates that an API key is required.
	ErrAPIKeyRequired = errors.New("API key is required")
	// ErrNoPriceExtracted indicates that no price could be extracted from a page.
	ErrNoPriceExtracted = errors.New("no price extracted from page")
	// ErrUnknownSource indicates a source key missing from the registry.
	ErrUnknownSource = errors.New("unknown source")
)
