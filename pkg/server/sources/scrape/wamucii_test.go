package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func newWamuciiForURL(t *testing.T, baseURL string) sources.Source {
	t.Helper()

	source, err := NewWamuciiSourceFromConfig(map[string]interface{}{
		"base_url": baseURL,
		"timeout":  5000,
	})
	if err != nil {
		t.Fatalf("NewWamuciiSourceFromConfig failed: %v", err)
	}
	return source
}

func TestWamuciiSource_FetchQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wheat/":
			_, _ = w.Write([]byte(`<html><body>
<span class="product-price">US$ 0.42 per kg</span>
</body></html>`))
		case "/maize/":
			_, _ = w.Write([]byte(`<html><body>
<p>The retail price range for Kenya maize is between US$ 0.30 and US$ 0.52 per kilogram.</p>
</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source := newWamuciiForURL(t, server.URL)

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %d: %+v", len(quotes), quotes)
	}

	for _, q := range quotes {
		if q.Currency != sources.CurrencyUSD {
			t.Errorf("%s currency = %s, want USD", q.Commodity, q.Currency)
		}
		if q.Unit != "KG" {
			t.Errorf("%s unit = %q, want KG", q.Commodity, q.Unit)
		}
		if q.Market != "Kenya" {
			t.Errorf("%s market = %q, want Kenya", q.Commodity, q.Market)
		}
		if q.ProductType != sources.ProductGrain {
			t.Errorf("%s product type = %s, want grain", q.Commodity, q.ProductType)
		}
	}

	wheat, ok := quoteFor(quotes, sources.CommodityWheat)
	if !ok {
		t.Fatal("Missing WHEAT quote")
	}
	if !wheat.Price.Equal(decimal.RequireFromString("0.42")) {
		t.Errorf("WHEAT price = %s, want 0.42", wheat.Price)
	}

	maize, ok := quoteFor(quotes, sources.CommodityMaize)
	if !ok {
		t.Fatal("Missing MAIZE quote")
	}
	if !maize.Price.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("MAIZE price = %s, want 0.30", maize.Price)
	}
}

func TestWamuciiSource_FailureIsolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wheat/" {
			_, _ = w.Write([]byte(`<span class="price">US$ 0.45</span>`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := newWamuciiForURL(t, server.URL)

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	// The maize page failing must not cost us the wheat quote.
	if len(quotes) != 1 || quotes[0].Commodity != sources.CommodityWheat {
		t.Fatalf("Expected only the WHEAT quote, got %+v", quotes)
	}
}

func TestWamuciiSource_NoPriceOnPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>No prices today.</p></body></html>"))
	}))
	defer server.Close()

	source := newWamuciiForURL(t, server.URL)

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("Expected no quotes, got %+v", quotes)
	}
}

func TestWamuciiSource_FlourNotServed(t *testing.T) {
	source := newWamuciiForURL(t, "http://127.0.0.1:1")

	quotes, err := source.FetchQuotes(context.Background(),
		[]sources.Commodity{sources.CommodityWheatFlour, sources.CommodityMaizeFlour}, false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("Expected no flour quotes, got %+v", quotes)
	}
}

func TestWamuciiSource_MockQuotes(t *testing.T) {
	source := newWamuciiForURL(t, "http://127.0.0.1:1")

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), true)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("Expected 2 mock quotes, got %d", len(quotes))
	}
	for _, q := range quotes {
		if q.Currency != sources.CurrencyUSD || q.Unit != "KG" {
			t.Errorf("Mock quote = %+v", q)
		}
		if q.Degraded {
			t.Errorf("Mock quote for %s marked degraded", q.Commodity)
		}
	}
}

func TestFirstPriceText_StrategyOrder(t *testing.T) {
	page := `<html><body>
<div class="price-box">no numbers here</div>
<span class="unit-price">KES 65 per kg</span>
<p>The retail price range is between US$ 0.40 and US$ 0.60.</p>
</body></html>`

	text, ok := firstPriceText(page)
	if !ok {
		t.Fatal("Expected a price text match")
	}
	// The numberless price-box div is passed over; the class-tagged span
	// wins before the prose strategy is ever tried.
	if text != "KES 65 per kg" {
		t.Errorf("firstPriceText = %q, want the span text", text)
	}
}
