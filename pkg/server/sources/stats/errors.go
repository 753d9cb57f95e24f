// Package stats provides statistics API quote sources.
package stats

import "errors"

var (
	// ErrMalformedEnvelope indicates that the response was not the expected two-element array.
	ErrMalformedEnvelope = errors.New("malformed response envelope")
	// ErrNoObservations indicates that the indicator carried no usable observation.
	ErrNoObservations = errors.New("no observations for indicator")
)
