package fin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const defaultFinnhubBaseURL = "https://finnhub.io"

// finnhubSymbols maps grain commodities to quote symbols. Finnhub does not
// genuinely carry these commodities on its quote endpoint; the source is a
// best-effort placeholder kept at the front of the chain for the day a
// symbol starts resolving.
var finnhubSymbols = map[sources.Commodity]string{
	sources.CommodityWheat: "WHEAT",
	sources.CommodityMaize: "CORN",
}

// FinnhubSource queries the Finnhub quote API per grain symbol. A missing
// API key is a valid state: the source simply contributes nothing.
type FinnhubSource struct {
	*sources.BaseSource

	baseURL string
	apiKey  string
}

// finnhubQuote is the /api/v1/quote response. Unknown symbols come back with
// every field zeroed rather than an error status.
type finnhubQuote struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	Timestamp int64   `json:"t"`
}

// NewFinnhubSourceFromConfig creates a new FinnhubSource from config.
func NewFinnhubSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	baseURL := defaultFinnhubBaseURL
	if u, ok := config["base_url"].(string); ok && u != "" {
		baseURL = strings.TrimRight(u, "/")
	}

	apiKey, _ := config["api_key"].(string)

	timeout := sources.TimeoutFromConfig(config, 10*time.Second)
	logger := sources.GetLoggerFromConfig(config)

	base := sources.NewBaseSource("Finnhub", sources.SourceTypeFin,
		[]sources.ProductType{sources.ProductGrain}, timeout, logger)

	if apiKey == "" {
		logger.Info("Finnhub API key not configured, source will return no quotes")
	}

	return &FinnhubSource{BaseSource: base, baseURL: baseURL, apiKey: apiKey}, nil
}

// FetchQuotes looks up each requested grain symbol concurrently. Without an
// API key it short-circuits to an empty result; mock mode is empty too,
// matching the placeholder role.
func (s *FinnhubSource) FetchQuotes(ctx context.Context, commodities []sources.Commodity, useMock bool) ([]sources.RawQuote, error) {
	if useMock || s.apiKey == "" {
		return nil, nil
	}

	requested := s.FilterServed(commodities)
	if len(requested) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		quotes []sources.RawQuote
	)

	for _, commodity := range requested {
		symbol, ok := finnhubSymbols[commodity]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(commodity sources.Commodity, symbol string) {
			defer wg.Done()

			quote, err := s.fetchSymbol(ctx, symbol)
			if err != nil {
				s.Logger().Debug("Symbol lookup yielded nothing",
					"commodity", string(commodity), "symbol", symbol, "error", err)
				return
			}

			observed := time.Now()
			if quote.Timestamp > 0 {
				observed = time.Unix(quote.Timestamp, 0)
			}

			mu.Lock()
			quotes = append(quotes, sources.RawQuote{
				Commodity:   commodity,
				Price:       decimal.NewFromFloat(quote.Current),
				Currency:    sources.CurrencyUSD,
				Unit:        "MT",
				ProductType: sources.ProductGrain,
				ObservedAt:  observed,
			})
			mu.Unlock()
		}(commodity, symbol)
	}

	wg.Wait()
	return quotes, nil
}

func (s *FinnhubSource) fetchSymbol(ctx context.Context, symbol string) (finnhubQuote, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s&token=%s",
		s.baseURL, url.QueryEscape(symbol), url.QueryEscape(s.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return finnhubQuote{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		return finnhubQuote{}, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return finnhubQuote{}, sources.ErrRateLimitExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return finnhubQuote{}, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	var quote finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return finnhubQuote{}, fmt.Errorf("failed to decode quote: %w", err)
	}

	if quote.Current <= 0 {
		return finnhubQuote{}, ErrNoQuote
	}

	return quote, nil
}
