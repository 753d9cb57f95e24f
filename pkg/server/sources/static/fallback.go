// Package static provides the fixed last-resort quote source.
package static

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

// fallbackTable holds the last-resort USD per metric ton value for every
// canonical commodity. A commodity missing from this table yields no quote
// at all rather than an error.
var fallbackTable = map[sources.Commodity]decimal.Decimal{
	sources.CommodityWheat:      decimal.NewFromInt(280),
	sources.CommodityMaize:      decimal.NewFromInt(220),
	sources.CommodityWheatFlour: decimal.NewFromInt(650),
	sources.CommodityMaizeFlour: decimal.NewFromInt(480),
}

// FallbackSource terminates every chain: it quotes the static table for both
// product classes, touches no network, and never fails.
type FallbackSource struct {
	*sources.BaseSource
}

// NewFallbackSourceFromConfig creates a new FallbackSource from config.
func NewFallbackSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	logger := sources.GetLoggerFromConfig(config)

	base := sources.NewBaseSource("Fallback", sources.SourceTypeStatic,
		[]sources.ProductType{sources.ProductGrain, sources.ProductFlour},
		sources.TimeoutFromConfig(config, 5*time.Second), logger)

	return &FallbackSource{BaseSource: base}, nil
}

// FetchQuotes returns the table value for every requested commodity the table
// knows, in requested order. Mock and live behavior are identical.
func (s *FallbackSource) FetchQuotes(_ context.Context, commodities []sources.Commodity, _ bool) ([]sources.RawQuote, error) {
	now := time.Now()
	quotes := make([]sources.RawQuote, 0, len(commodities))
	for _, commodity := range commodities {
		price, ok := fallbackTable[commodity]
		if !ok {
			continue
		}

		quotes = append(quotes, sources.RawQuote{
			Commodity:   commodity,
			Price:       price,
			Currency:    sources.CurrencyUSD,
			Unit:        "MT",
			ProductType: commodity.Class(),
			ObservedAt:  now,
		})
	}
	return quotes, nil
}
