package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const defaultAMISURL = "https://amis.co.ke/site/market"

// tableStrategies is the ordered list of extraction strategies tried until
// one yields a table with more than one data row. Markup on the market site
// changes; the strategies go from most to least specific.
var tableStrategies = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<table[^>]*id="[^"]*market[^"]*"[^>]*>[\s\S]*?</table>`),
	regexp.MustCompile(`(?i)<table[^>]*class="[^"]*table[^"]*"[^>]*>[\s\S]*?</table>`),
	regexp.MustCompile(`(?i)<table[^>]*>[\s\S]*?</table>`),
}

// AMISSource scrapes wholesale prices from the Kenyan Agricultural Market
// Information System. It is the only source quoting both grain and flour,
// and the only one that substitutes a fixed dataset when the page cannot be
// scraped; substituted quotes carry Degraded so consumers can tell them from
// live data.
type AMISSource struct {
	*sources.BaseSource

	url string
}

// amisMockQuotes is the fixed dataset substituted on live failure and
// returned verbatim in mock mode. Prices are indicative KES wholesale values.
var amisMockQuotes = []sources.RawQuote{
	{Commodity: sources.CommodityWheat, Price: decimal.NewFromInt(5200), Currency: sources.CurrencyKES, Market: "Nairobi", Unit: "BAG", ProductType: sources.ProductGrain},
	{Commodity: sources.CommodityMaize, Price: decimal.NewFromInt(3800), Currency: sources.CurrencyKES, Market: "Nakuru", Unit: "BAG", ProductType: sources.ProductGrain},
	{Commodity: sources.CommodityWheatFlour, Price: decimal.NewFromInt(210), Currency: sources.CurrencyKES, Market: "Nairobi", Unit: "2KG", ProductType: sources.ProductFlour},
	{Commodity: sources.CommodityMaizeFlour, Price: decimal.NewFromInt(145), Currency: sources.CurrencyKES, Market: "Nairobi", Unit: "2KG", ProductType: sources.ProductFlour},
}

// NewAMISSourceFromConfig creates a new AMISSource from config.
func NewAMISSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	url := defaultAMISURL
	if u, ok := config["url"].(string); ok && u != "" {
		url = u
	}

	timeout := sources.TimeoutFromConfig(config, 15*time.Second)
	logger := sources.GetLoggerFromConfig(config)

	base := sources.NewBaseSource("AMIS", sources.SourceTypeScrape,
		[]sources.ProductType{sources.ProductGrain, sources.ProductFlour}, timeout, logger)

	return &AMISSource{BaseSource: base, url: url}, nil
}

// FetchQuotes scrapes the market table for the requested commodities. A live
// failure is downgraded to the fixed dataset rather than an error, so the
// caller always has market-shaped data for the classes this source serves.
func (s *AMISSource) FetchQuotes(ctx context.Context, commodities []sources.Commodity, useMock bool) ([]sources.RawQuote, error) {
	requested := s.FilterServed(commodities)
	if len(requested) == 0 {
		return nil, nil
	}

	if useMock {
		return s.mockQuotes(requested, false), nil
	}

	quotes, err := s.scrapeMarketPage(ctx, requested)
	if err != nil {
		s.Logger().Warn("Market page scrape failed, substituting fixed dataset",
			"url", s.url, "error", err)
		return s.mockQuotes(requested, true), nil
	}

	return quotes, nil
}

func (s *AMISSource) scrapeMarketPage(ctx context.Context, requested []sources.Commodity) ([]sources.RawQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	rows, err := marketRows(string(body))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quotes := make([]sources.RawQuote, 0, len(requested))
	for _, cells := range rows {
		quote, ok := parseMarketRow(cells, requested, now)
		if !ok {
			continue
		}
		quotes = append(quotes, quote)
	}

	s.Logger().Debug("Scraped market table", "rows", len(rows), "quotes", len(quotes))
	return quotes, nil
}

// marketRows locates the first table holding more than one data row, trying
// each extraction strategy in order, and returns the rows' cell texts.
func marketRows(html string) ([][]string, error) {
	for _, strategy := range tableStrategies {
		for _, table := range strategy.FindAllString(html, -1) {
			rows := make([][]string, 0)
			for _, row := range rowRegex.FindAllStringSubmatch(table, -1) {
				if cells := rowCells(row[1]); len(cells) >= 2 {
					rows = append(rows, cells)
				}
			}
			if len(rows) > 1 {
				return rows, nil
			}
		}
	}
	return nil, ErrNoTableFound
}

// parseMarketRow turns one (commodity, market, price, optional unit) row into
// a raw quote. Rows for unrequested commodities or without a positive numeric
// price are skipped.
func parseMarketRow(cells []string, requested []sources.Commodity, now time.Time) (sources.RawQuote, bool) {
	if len(cells) < 3 {
		return sources.RawQuote{}, false
	}

	commodity, ok := sources.MatchCommodity(cells[0])
	if !ok || !containsCommodity(requested, commodity) {
		return sources.RawQuote{}, false
	}

	price, ok := sources.ExtractPrice(cells[2])
	if !ok {
		return sources.RawQuote{}, false
	}

	unit := ""
	if len(cells) > 3 {
		unit = cells[3]
	}

	return sources.RawQuote{
		Commodity:   commodity,
		Price:       price,
		Currency:    sources.DetectCurrency(cells[2]),
		Market:      cells[1],
		Unit:        unit,
		ProductType: commodity.Class(),
		ObservedAt:  now,
	}, true
}

func (s *AMISSource) mockQuotes(requested []sources.Commodity, degraded bool) []sources.RawQuote {
	now := time.Now()
	quotes := make([]sources.RawQuote, 0, len(requested))
	for _, quote := range amisMockQuotes {
		if !containsCommodity(requested, quote.Commodity) {
			continue
		}
		quote.Degraded = degraded
		quote.ObservedAt = now
		quotes = append(quotes, quote)
	}
	return quotes
}
