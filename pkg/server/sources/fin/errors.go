// Package fin provides financial-data API quote sources.
package fin

import "errors"

var (
	// ErrNoQuote indicates that the API had no usable quote for a symbol.
	ErrNoQuote = errors.New("no quote for symbol")
)
