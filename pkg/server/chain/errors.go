// Package chain implements the priority-ordered source fallback chain.
package chain

import "errors"

var (
	// ErrNoTiers indicates that the chain was built without any source tiers.
	ErrNoTiers = errors.New("no source tiers configured")
)
