package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const defaultWamuciiBaseURL = "https://www.selinawamucii.com/insights/prices/kenya"

// wamuciiSlugs maps grain commodities to their page slugs. The directory has
// no flour pages.
var wamuciiSlugs = map[sources.Commodity]string{
	sources.CommodityWheat: "wheat",
	sources.CommodityMaize: "maize",
}

// priceStrategies is the ordered list of patterns tried against a commodity
// page until one yields a positive price. Class-tagged nodes first, then the
// prose the insights pages quote retail ranges in.
var priceStrategies = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<span[^>]*class="[^"]*price[^"]*"[^>]*>([\s\S]*?)</span>`),
	regexp.MustCompile(`(?i)<div[^>]*class="[^"]*price[^"]*"[^>]*>([\s\S]*?)</div>`),
	regexp.MustCompile(`(?i)is between\s*(US?\$\s*[0-9][0-9,.]*)`),
	regexp.MustCompile(`(?i)(US?\$\s*[0-9][0-9,.]*)\s*(?:and|to|per)`),
}

// WamuciiSource scrapes per-kilogram grain prices from the Selina Wamucii
// commodity insights pages, one page per commodity.
type WamuciiSource struct {
	*sources.BaseSource

	baseURL string
}

var wamuciiMockQuotes = []sources.RawQuote{
	{Commodity: sources.CommodityWheat, Price: decimal.RequireFromString("0.42"), Currency: sources.CurrencyUSD, Market: "Kenya", Unit: "KG", ProductType: sources.ProductGrain},
	{Commodity: sources.CommodityMaize, Price: decimal.RequireFromString("0.35"), Currency: sources.CurrencyUSD, Market: "Kenya", Unit: "KG", ProductType: sources.ProductGrain},
}

// NewWamuciiSourceFromConfig creates a new WamuciiSource from config.
func NewWamuciiSourceFromConfig(config map[string]interface{}) (sources.Source, error) {
	baseURL := defaultWamuciiBaseURL
	if u, ok := config["base_url"].(string); ok && u != "" {
		baseURL = strings.TrimRight(u, "/")
	}

	timeout := sources.TimeoutFromConfig(config, 15*time.Second)
	logger := sources.GetLoggerFromConfig(config)

	base := sources.NewBaseSource("SelinaWamucii", sources.SourceTypeScrape,
		[]sources.ProductType{sources.ProductGrain}, timeout, logger)

	return &WamuciiSource{BaseSource: base, baseURL: baseURL}, nil
}

// FetchQuotes fetches each requested grain's page concurrently. One
// commodity's failure never fails the others; it just yields no quote.
func (s *WamuciiSource) FetchQuotes(ctx context.Context, commodities []sources.Commodity, useMock bool) ([]sources.RawQuote, error) {
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
		slug, ok := wamuciiSlugs[commodity]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(commodity sources.Commodity, slug string) {
			defer wg.Done()

			quote, err := s.fetchCommodityPage(ctx, commodity, slug)
			if err != nil {
				s.Logger().Warn("Directory page fetch failed",
					"commodity", string(commodity), "error", err)
				return
			}

			mu.Lock()
			quotes = append(quotes, quote)
			mu.Unlock()
		}(commodity, slug)
	}

	wg.Wait()
	return quotes, nil
}

func (s *WamuciiSource) fetchCommodityPage(ctx context.Context, commodity sources.Commodity, slug string) (sources.RawQuote, error) {
	url := fmt.Sprintf("%s/%s/", s.baseURL, slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return sources.RawQuote{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		return sources.RawQuote{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sources.RawQuote{}, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sources.RawQuote{}, fmt.Errorf("failed to read response: %w", err)
	}

	priceText, ok := firstPriceText(string(body))
	if !ok {
		return sources.RawQuote{}, ErrNoPriceFound
	}

	price, _ := sources.ExtractPrice(priceText)

	return sources.RawQuote{
		Commodity:   commodity,
		Price:       price,
		Currency:    sources.DetectCurrency(priceText),
		Market:      "Kenya",
		Unit:        "KG",
		ProductType: sources.ProductGrain,
		ObservedAt:  time.Now(),
	}, nil
}

// firstPriceText returns the first strategy match holding a positive number.
func firstPriceText(html string) (string, bool) {
	for _, strategy := range priceStrategies {
		for _, match := range strategy.FindAllStringSubmatch(html, -1) {
			text := stripHTML(match[1])
			if _, ok := sources.ExtractPrice(text); ok {
				return text, true
			}
		}
	}
	return "", false
}

func (s *WamuciiSource) mockQuotes(requested []sources.Commodity) []sources.RawQuote {
	now := time.Now()
	quotes := make([]sources.RawQuote, 0, len(requested))
	for _, quote := range wamuciiMockQuotes {
		if !containsCommodity(requested, quote.Commodity) {
			continue
		}
		quote.ObservedAt = now
		quotes = append(quotes, quote)
	}
	return quotes
}
