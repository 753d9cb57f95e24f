package sources

import (
	"net/http"
	"time"

	"github.com/palontologist/price-oracles/pkg/logging"
)

// BaseSource provides the common fields of a per-request quote source: name,
// type, the product classes it can quote, an HTTP client with the configured
// timeout and a logger. Adapters embed it and implement FetchQuotes.
type BaseSource struct {
	name       string
	sourcetype SourceType
	serves     map[ProductType]bool
	client     *http.Client
	timeout    time.Duration
	logger     *logging.Logger
}

// NewBaseSource creates a new base source quoting the given product types.
func NewBaseSource(name string, sourcetype SourceType, products []ProductType, timeout time.Duration, logger *logging.Logger) *BaseSource {
	serves := make(map[ProductType]bool, len(products))
	for _, p := range products {
		serves[p] = true
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &BaseSource{
		name:       name,
		sourcetype: sourcetype,
		serves:     serves,
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Serves reports whether this source can quote the given product type
func (b *BaseSource) Serves(product ProductType) bool {
	return b.serves[product]
}

// Client returns the HTTP client configured with the source timeout
func (b *BaseSource) Client() *http.Client {
	return b.client
}

// Timeout returns the per-call HTTP timeout
func (b *BaseSource) Timeout() time.Duration {
	return b.timeout
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// FilterServed returns the subset of commodities whose product type this
// source can quote, preserving order.
func (b *BaseSource) FilterServed(commodities []Commodity) []Commodity {
	served := make([]Commodity, 0, len(commodities))
	for _, c := range commodities {
		if b.serves[c.Class()] {
			served = append(served, c)
		}
	}
	return served
}
