// Package chain implements the priority-ordered source fallback chain.
package chain

import (
	"context"
	"time"

	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/metrics"
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

// Tier is one pass of the chain: a source asked for one or more product
// classes. A source serving both classes appears as two consecutive tiers,
// flour before grain.
type Tier struct {
	// Key is the config-level source name ("amis", "worldbank", ...) used to
	// look up per-source mock flags. Both tiers of a dual-class source share
	// one key.
	Key     string
	Source  sources.Source
	Classes []sources.ProductType
}

// covers reports whether this tier quotes the commodity's product class.
func (t Tier) covers(c sources.Commodity) bool {
	for _, class := range t.Classes {
		if c.Class() == class {
			return true
		}
	}
	return false
}

// Request is one caller-supplied fetch. Commodity names may be aliases
// ("CORN", "unga wa ngano"); they are resolved before the chain runs.
type Request struct {
	Commodities  []string
	IncludeFlour bool
	Mock         map[string]bool
}

// Chain walks its tiers in priority order, resolving each requested
// commodity at most once. It never fails for infrastructure reasons: a tier
// that errors contributes zero quotes and the walk continues.
type Chain struct {
	tiers        []Tier
	conv         *sources.Converter
	logger       *logging.Logger
	mockDefaults map[string]bool
}

// New creates a chain over the given tiers.
func New(tiers []Tier, conv *sources.Converter, logger *logging.Logger) *Chain {
	if conv == nil {
		conv = sources.DefaultConverter()
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	return &Chain{
		tiers:  tiers,
		conv:   conv,
		logger: logger,
	}
}

// Tiers returns the chain's tier list in walk order.
func (c *Chain) Tiers() []Tier {
	return c.tiers
}

// SetMockDefaults marks sources that always serve their offline dataset,
// keyed by config source name. Request mock flags add to these.
func (c *Chain) SetMockDefaults(defaults map[string]bool) {
	c.mockDefaults = defaults
}

// FetchPrices resolves the request's commodity set, walks the tiers in order
// and returns one normalized quote per commodity that any tier could price,
// in requested order. The only error it returns is request validation (an
// unknown commodity name); upstream failures only shrink the result.
func (c *Chain) FetchPrices(ctx context.Context, req Request) ([]sources.NormalizedQuote, error) {
	start := time.Now()
	defer func() {
		metrics.RecordChainRun(time.Since(start))
	}()

	requested, err := resolveCommodities(req)
	if err != nil {
		return nil, err
	}

	resolved := make(map[sources.Commodity]sources.NormalizedQuote, len(requested))

	for _, tier := range c.tiers {
		subset := c.unresolved(requested, tier, resolved)
		if len(subset) == 0 {
			continue
		}

		useMock := req.Mock[tier.Key] || c.mockDefaults[tier.Key]
		c.runTier(ctx, tier, subset, useMock, resolved)
	}

	quotes := make([]sources.NormalizedQuote, 0, len(requested))
	for _, commodity := range requested {
		if quote, ok := resolved[commodity]; ok {
			quotes = append(quotes, quote)
		}
	}

	c.logger.Debug("Chain run complete",
		"requested", len(requested), "resolved", len(quotes), "duration", time.Since(start).String())
	return quotes, nil
}

// runTier fetches one tier's quotes for the unresolved subset and settles
// them into the accumulator. First successful normalization per commodity
// wins; list order breaks ties within a tier.
func (c *Chain) runTier(ctx context.Context, tier Tier, subset []sources.Commodity, useMock bool, resolved map[sources.Commodity]sources.NormalizedQuote) {
	name := tier.Source.Name()

	fetchStart := time.Now()
	raws, err := tier.Source.FetchQuotes(ctx, subset, useMock)
	if err != nil {
		metrics.RecordQuoteFetch(name, "error", time.Since(fetchStart))
		c.logger.Warn("Source fetch failed", "source", name, "error", err)
		return
	}
	metrics.RecordQuoteFetch(name, "success", time.Since(fetchStart))

	degraded := false
	for _, raw := range raws {
		if raw.Degraded {
			degraded = true
		}

		if _, done := resolved[raw.Commodity]; done {
			continue
		}
		if !commodityIn(subset, raw.Commodity) {
			continue
		}

		quote, err := c.conv.Normalize(raw, name)
		if err != nil {
			c.logger.Debug("Discarding quote",
				"source", name, "commodity", string(raw.Commodity), "error", err)
			continue
		}

		resolved[raw.Commodity] = quote
		metrics.RecordResolvedQuote(string(raw.Commodity), name)
		if tier.Source.Type() == sources.SourceTypeStatic {
			metrics.RecordFallbackQuote(string(raw.Commodity))
		}
	}

	if degraded {
		metrics.RecordDegradedFetch(name)
		c.logger.Warn("Source returned substitute data", "source", name)
	}
}

// unresolved returns the requested commodities this tier still has to try.
func (c *Chain) unresolved(requested []sources.Commodity, tier Tier, resolved map[sources.Commodity]sources.NormalizedQuote) []sources.Commodity {
	subset := make([]sources.Commodity, 0, len(requested))
	for _, commodity := range requested {
		if _, done := resolved[commodity]; done {
			continue
		}
		if !tier.covers(commodity) {
			continue
		}
		subset = append(subset, commodity)
	}
	return subset
}

// resolveCommodities maps the request to a deduplicated canonical commodity
// list. An empty request defaults to the grains, or all four commodities
// when flour is included.
func resolveCommodities(req Request) ([]sources.Commodity, error) {
	if len(req.Commodities) == 0 {
		if req.IncludeFlour {
			return sources.AllCommodities(), nil
		}
		return sources.DefaultCommodities(), nil
	}

	seen := make(map[sources.Commodity]bool, len(req.Commodities))
	resolved := make([]sources.Commodity, 0, len(req.Commodities))
	for _, name := range req.Commodities {
		commodity, err := sources.ParseCommodity(name)
		if err != nil {
			return nil, err
		}
		if seen[commodity] {
			continue
		}
		seen[commodity] = true
		resolved = append(resolved, commodity)
	}
	return resolved, nil
}

func commodityIn(list []sources.Commodity, c sources.Commodity) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}
