package static

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func TestFallbackSource_AllCommodities(t *testing.T) {
	source, err := NewFallbackSourceFromConfig(map[string]interface{}{})
	if err != nil {
		t.Fatalf("NewFallbackSourceFromConfig failed: %v", err)
	}

	quotes, err := source.FetchQuotes(context.Background(), sources.AllCommodities(), false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	expected := map[sources.Commodity]string{
		sources.CommodityWheat:      "280",
		sources.CommodityMaize:      "220",
		sources.CommodityWheatFlour: "650",
		sources.CommodityMaizeFlour: "480",
	}

	if len(quotes) != len(expected) {
		t.Fatalf("Expected %d quotes, got %d", len(expected), len(quotes))
	}

	for _, q := range quotes {
		want, ok := expected[q.Commodity]
		if !ok {
			t.Errorf("Unexpected commodity %s", q.Commodity)
			continue
		}
		if !q.Price.Equal(decimal.RequireFromString(want)) {
			t.Errorf("%s price = %s, want %s", q.Commodity, q.Price, want)
		}
		if q.Currency != sources.CurrencyUSD {
			t.Errorf("%s currency = %s, want USD", q.Commodity, q.Currency)
		}
		if q.Unit != "MT" {
			t.Errorf("%s unit = %q, want MT", q.Commodity, q.Unit)
		}
	}
}

func TestFallbackSource_PreservesRequestedOrder(t *testing.T) {
	source, err := NewFallbackSourceFromConfig(map[string]interface{}{})
	if err != nil {
		t.Fatalf("NewFallbackSourceFromConfig failed: %v", err)
	}

	requested := []sources.Commodity{sources.CommodityMaize, sources.CommodityWheat}
	quotes, err := source.FetchQuotes(context.Background(), requested, false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Commodity != sources.CommodityMaize || quotes[1].Commodity != sources.CommodityWheat {
		t.Errorf("Quotes out of order: %+v", quotes)
	}
}

func TestFallbackSource_UnknownCommodityOmitted(t *testing.T) {
	source, err := NewFallbackSourceFromConfig(map[string]interface{}{})
	if err != nil {
		t.Fatalf("NewFallbackSourceFromConfig failed: %v", err)
	}

	// A commodity outside the table is silently absent from the result.
	quotes, err := source.FetchQuotes(context.Background(),
		[]sources.Commodity{sources.Commodity("RICE"), sources.CommodityWheat}, false)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 1 || quotes[0].Commodity != sources.CommodityWheat {
		t.Fatalf("Expected only the WHEAT quote, got %+v", quotes)
	}
}
