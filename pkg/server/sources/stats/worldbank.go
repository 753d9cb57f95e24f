package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const defaultWorldBankBaseURL = "https://api.worldbank.org/v2"

// worldBankCodes maps grain commodities to Pink Sheet indicator codes. The
// flours have no indicators there.
var worldBankCodes = map[sources.Commodity]string{
	sources.CommodityWheat: "PWHEAMTUSD",
	sources.CommodityMaize: "PMAIZMTUSD",
}

// WorldBankSource fetches the most recent commodity benchmark values from the
// World Bank indicators API (free, no API key). Values arrive in USD per
// metric ton already.
type WorldBankSource struct {
	*sources.BaseSource

	baseURL string
}

// worldBankObservation is one entry of the second envelope element. Value is
// a pointer because the API returns null for missing periods.
type worldBankObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

var worldBankMockQuotes = []sources.RawQuote{
	{Commodity: sources.CommodityWheat, Price: decimal.RequireFromString("245.3"), Currency: sources.CurrencyUSD, Unit: "MT", ProductType: sources.ProductGrain},
	{Commodity: sources.CommodityMaize, Price: decimal.RequireFromString("189.9"), Currency: sources.CurrencyUSD, Unit: "MT", ProductType: sources.ProductGrain},
}

// NewWorldBankSourceFromConfig creates a new WorldBankSource from config.
func NewWorldBankSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	baseURL := defaultWorldBankBaseURL
	if u, ok := config["base_url"].(string); ok && u != "" {
		baseURL = strings.TrimRight(u, "/")
	}

	timeout := sources.TimeoutFromConfig(config, 10*time.Second)
	logger := sources.GetLoggerFromConfig(config)

	base := sources.NewBaseSource("WorldBank", sources.SourceTypeStats,
		[]sources.ProductType{sources.ProductGrain}, timeout, logger)

	return &WorldBankSource{BaseSource: base, baseURL: baseURL}, nil
}

// FetchQuotes looks up the most recent value per requested grain. Lookups run
// concurrently and fail independently.
func (s *WorldBankSource) FetchQuotes(ctx context.Context, commodities []sources.Commodity, useMock bool) ([]sources.RawQuote, error) {
	requested := s.FilterServed(commodities)
	if len(requested) == 0 {
		return nil, nil
	}

	if useMock {
		return s.mockQuotes(requested), nil
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		quotes []sources.RawQuote
	)

	for _, commodity := range requested {
		code, ok := worldBankCodes[commodity]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(commodity sources.Commodity, code string) {
			defer wg.Done()

			obs, err := s.fetchIndicator(ctx, code)
			if err != nil {
				s.Logger().Warn("Indicator fetch failed",
					"commodity", string(commodity), "indicator", code, "error", err)
				return
			}

			mu.Lock()
			quotes = append(quotes, sources.RawQuote{
				Commodity:   commodity,
				Price:       decimal.NewFromFloat(*obs.Value),
				Currency:    sources.CurrencyUSD,
				Unit:        "MT",
				ProductType: sources.ProductGrain,
				ObservedAt:  observationTime(obs.Date),
			})
			mu.Unlock()
		}(commodity, code)
	}

	wg.Wait()
	return quotes, nil
}

func (s *WorldBankSource) fetchIndicator(ctx context.Context, code string) (worldBankObservation, error) {
	url := fmt.Sprintf("%s/country/all/indicator/%s?format=json&mrnev=1&per_page=1", s.baseURL, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return worldBankObservation{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		return worldBankObservation{}, fmt.Errorf("failed to fetch indicator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return worldBankObservation{}, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return worldBankObservation{}, fmt.Errorf("failed to read response: %w", err)
	}

	// The API wraps results in a two-element array: metadata, observations.
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return worldBankObservation{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if len(envelope) < 2 {
		return worldBankObservation{}, ErrMalformedEnvelope
	}

	var observations []worldBankObservation
	if err := json.Unmarshal(envelope[1], &observations); err != nil {
		return worldBankObservation{}, fmt.Errorf("failed to decode observations: %w", err)
	}

	if len(observations) == 0 || observations[0].Value == nil || *observations[0].Value <= 0 {
		return worldBankObservation{}, ErrNoObservations
	}

	return observations[0], nil
}

// observationTime maps the API's annual ("2024") and monthly ("2024M10")
// date formats to a timestamp, falling back to now.
func observationTime(date string) time.Time {
	if t, err := time.Parse("2006M01", date); err == nil {
		return t
	}
	if year, err := strconv.Atoi(date); err == nil && year > 1900 {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Now()
}

func (s *WorldBankSource) mockQuotes(requested []sources.Commodity) []sources.RawQuote {
	now := time.Now()
	quotes := make([]sources.RawQuote, 0, len(requested))
	for _, quote := range worldBankMockQuotes {
		for _, c := range requested {
			if c == quote.Commodity {
				quote.ObservedAt = now
				quotes = append(quotes, quote)
				break
			}
		}
	}
	return quotes
}
