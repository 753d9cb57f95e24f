package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

const (
	wheatEnvelope = `[{"page":1,"pages":1,"per_page":1,"total":1},
[{"indicator":{"id":"PWHEAMTUSD","value":"Wheat, US HRW"},"country":{"id":"1W","value":"World"},"countryiso3code":"WLD","date":"2024","value":245.3,"unit":"","obs_status":"","decimal":1}]]`

	maizeEnvelope = `[{"page":1,"pages":1,"per_page":1,"total":1},
[{"indicator":{"id":"PMAIZMTUSD","value":"Maize"},"country":{"id":"1W","value":"World"},"countryiso3code":"WLD","date":"2024M06","value":189.9,"unit":"","obs_status":"","decimal":1}]]`

	nullEnvelope = `[{"page":1,"pages":0,"per_page":1,"total":0},
[{"indicator":{"id":"PMAIZMTUSD","value":"Maize"},"date":"2024","value":null}]]`
)

func newWorldBankForURL(t *testing.T, baseURL string) sources.Source {
	t.Helper()

	source, err := NewWorldBankSourceFromConfig(map[string]interface{}{
		"base_url": baseURL,
		"timeout":  5000,
	})
	if err != nil {
		t.Fatalf("NewWorldBankSourceFromConfig failed: %v", err)
	}
	return source
}

func TestWorldBankSource_FetchQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "PWHEAMTUSD"):
			_, _ = w.Write([]byte(wheatEnvelope))
		case strings.Contains(r.URL.Path, "PMAIZMTUSD"):
			_, _ = w.Write([]byte(maizeEnvelope))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	source := newWorldBankForURL(t, server.URL)

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
		if q.Unit != "MT" {
			t.Errorf("%s unit = %q, want MT", q.Commodity, q.Unit)
		}

		switch q.Commodity {
		case sources.CommodityWheat:
			if !q.Price.Equal(decimal.RequireFromString("245.3")) {
				t.Errorf("WHEAT price = %s, want 245.3", q.Price)
			}
			if q.ObservedAt.Year() != 2024 || q.ObservedAt.Month() != time.January {
				t.Errorf("WHEAT observed at %s, want 2024-01", q.ObservedAt)
			}
		case sources.CommodityMaize:
			if !q.Price.Equal(decimal.RequireFromString("189.9")) {
				t.Errorf("MAIZE price = %s, want 189.9", q.Price)
			}
			if q.ObservedAt.Year() != 2024 || q.ObservedAt.Month() != time.June {
				t.Errorf("MAIZE observed at %s, want 2024-06", q.ObservedAt)
			}
		default:
			t.Errorf("Unexpected commodity %s", q.Commodity)
		}
	}
}

func TestWorldBankSource_NullValueIsolated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "PWHEAMTUSD") {
			_, _ = w.Write([]byte(wheatEnvelope))
			return
		}
		_, _ = w.Write([]byte(nullEnvelope))
	}))
	defer server.Close()

	source := newWorldBankForURL(t, server.URL)

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 1 || quotes[0].Commodity != sources.CommodityWheat {
		t.Fatalf("Expected only the WHEAT quote, got %+v", quotes)
	}
}

func TestWorldBankSource_HTTPErrorIsolated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "PMAIZMTUSD") {
			_, _ = w.Write([]byte(maizeEnvelope))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := newWorldBankForURL(t, server.URL)

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 1 || quotes[0].Commodity != sources.CommodityMaize {
		t.Fatalf("Expected only the MAIZE quote, got %+v", quotes)
	}
}

func TestWorldBankSource_FlourNotServed(t *testing.T) {
	source := newWorldBankForURL(t, "http://127.0.0.1:1")

	quotes, err := source.FetchQuotes(context.Background(),
		[]sources.Commodity{sources.CommodityWheatFlour}, false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}
	if len(quotes) != 0 {
		t.Fatalf("Expected no quotes, got %+v", quotes)
	}
}

func TestWorldBankSource_MockQuotes(t *testing.T) {
	source := newWorldBankForURL(t, "http://127.0.0.1:1")

	quotes, err := source.FetchQuotes(context.Background(), sources.DefaultCommodities(), true)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Expected 2 mock quotes, got %d", len(quotes))
	}
}

func TestObservationTime(t *testing.T) {
	if got := observationTime("2023"); got.Year() != 2023 {
		t.Errorf("observationTime(2023) = %s", got)
	}
	if got := observationTime("2024M10"); got.Year() != 2024 || got.Month() != time.October {
		t.Errorf("observationTime(2024M10) = %s", got)
	}
	if got := observationTime("n/a"); time.Since(got) > time.Minute {
		t.Errorf("observationTime(n/a) = %s, want recent", got)
	}
}
