// Package config provides configuration loading and validation for price-oracles.
package config

import "errors"

var (
	// ErrNoSourcesConfigured indicates that no quote sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one quote source must be configured")
	// ErrNoSourcesEnabled indicates that no sources are enabled.
	ErrNoSourcesEnabled = errors.New("no sources enabled")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrUnknownSourceType indicates that the source type is unknown.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrInvalidExchangeRate indicates that the exchange rate is invalid.
	ErrInvalidExchangeRate = errors.New("exchange_rate must be > 0")
	// ErrInvalidBagSize indicates that the grain bag size is invalid.
	ErrInvalidBagSize = errors.New("grain_bag_kg must be > 0")
	// ErrInvalidPacketSize indicates that the flour packet size is invalid.
	ErrInvalidPacketSize = errors.New("flour_packet_kg must be > 0")
	// ErrStorePathRequired indicates that the store path must be specified.
	ErrStorePathRequired = errors.New("store path must be specified when the store is enabled")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
