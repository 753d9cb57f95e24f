package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType represents the type of quote source
type SourceType string

const (
	SourceTypeScrape SourceType = "scrape"
	SourceTypeStats  SourceType = "stats"
	SourceTypeFin    SourceType = "fin"
	SourceTypeStatic SourceType = "static"
)

// ProductType classifies a commodity as raw grain or milled flour
type ProductType string

const (
	ProductGrain ProductType = "grain"
	ProductFlour ProductType = "flour"
)

// Currency is a currency code accepted on raw quotes
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKES Currency = "KES"
)

// UnitMetricTon is the canonical unit of every normalized quote.
const UnitMetricTon = "MT"

// RawQuote is a single source-native price observation. It is produced by
// one adapter call, passed by value to the converter and discarded after
// normalization.
type RawQuote struct {
	Commodity   Commodity
	Price       decimal.Decimal
	Currency    Currency
	Market      string
	Unit        string // source-native: "KG", "BAG", "2KG", "MT", ...
	ProductType ProductType
	Degraded    bool // substitute data returned after a live fetch failure
	ObservedAt  time.Time
}

// PerKgPrice is a display price per kilogram in the source currency.
type PerKgPrice struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

// NormalizedQuote is the unit of output: USD per metric ton, rounded to two
// decimals. Immutable once constructed; the JSON tags are the stable contract
// consumers depend on.
type NormalizedQuote struct {
	Commodity   Commodity       `json:"commodity"`
	Price       decimal.Decimal `json:"price"`
	Currency    Currency        `json:"currency"`
	Unit        string          `json:"unit"`
	Source      string          `json:"source"`
	Market      string          `json:"market,omitempty"`
	ProductType ProductType     `json:"productType"`
	PerKg       *PerKgPrice     `json:"pricePerKg,omitempty"`
	Degraded    bool            `json:"degraded,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Source defines the interface that all quote sources must implement
type Source interface {
	// FetchQuotes returns raw quotes for the requested commodities.
	// useMock selects the source's deterministic offline dataset instead of
	// the network. Sources may return quotes for fewer commodities than
	// requested; they must never invent quotes for commodities outside the
	// requested set.
	FetchQuotes(ctx context.Context, commodities []Commodity, useMock bool) ([]RawQuote, error)

	// Name returns the unique name of this source
	Name() string

	// Type returns the type of this source
	Type() SourceType

	// Serves reports whether this source can quote the given product type
	Serves(product ProductType) bool
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
