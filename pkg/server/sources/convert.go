package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Default conversion parameters, used when the injected config is missing or
// invalid. The real values come from the pricing section of the config file.
const (
	defaultExchangeRate  = 154.0 // KES per USD
	defaultGrainBagKg    = 90.0
	defaultFlourPacketKg = 2.0
)

var kgPerTon = decimal.NewFromInt(1000)

// Converter turns source-native prices (currency + unit) into USD per metric
// ton. Exchange rate and bag/packet sizes are injected at construction, never
// hard-coded in the conversion math.
type Converter struct {
	exchangeRate  decimal.Decimal // KES per USD
	grainBagKg    decimal.Decimal
	flourPacketKg decimal.Decimal
}

// NewConverter creates a converter from pricing configuration. Non-positive
// parameters fall back to the documented defaults.
func NewConverter(exchangeRate, grainBagKg, flourPacketKg float64) *Converter {
	if exchangeRate <= 0 {
		exchangeRate = defaultExchangeRate
	}
	if grainBagKg <= 0 {
		grainBagKg = defaultGrainBagKg
	}
	if flourPacketKg <= 0 {
		flourPacketKg = defaultFlourPacketKg
	}
	return &Converter{
		exchangeRate:  decimal.NewFromFloat(exchangeRate),
		grainBagKg:    decimal.NewFromFloat(grainBagKg),
		flourPacketKg: decimal.NewFromFloat(flourPacketKg),
	}
}

// DefaultConverter returns a converter with the documented defaults
// (154 KES/USD, 90 kg grain bag, 2 kg flour packet).
func DefaultConverter() *Converter {
	return NewConverter(defaultExchangeRate, defaultGrainBagKg, defaultFlourPacketKg)
}

// Normalize converts a raw quote into the canonical USD-per-metric-ton form,
// attributed to the named source. Non-positive prices and currencies outside
// USD/KES are rejected; unknown units are taken as already per metric ton.
func (c *Converter) Normalize(raw RawQuote, source string) (NormalizedQuote, error) {
	if !raw.Price.IsPositive() {
		return NormalizedQuote{}, fmt.Errorf("%w: %s", ErrNonPositivePrice, raw.Price)
	}

	priceUSD := raw.Price
	switch raw.Currency {
	case CurrencyUSD:
		// already USD
	case CurrencyKES:
		priceUSD = priceUSD.Div(c.exchangeRate)
	default:
		return NormalizedQuote{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, raw.Currency)
	}

	timestamp := raw.ObservedAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	quote := NormalizedQuote{
		Commodity:   raw.Commodity,
		Price:       c.scaleToTon(priceUSD, raw.Unit, raw.ProductType).Round(2),
		Currency:    CurrencyUSD,
		Unit:        UnitMetricTon,
		Source:      source,
		Market:      raw.Market,
		ProductType: raw.ProductType,
		Degraded:    raw.Degraded,
		Timestamp:   timestamp,
	}

	// Flour is retailed per packet; carry a per-kg display price alongside.
	if raw.ProductType == ProductFlour {
		perKg := c.PricePerKg(raw)
		quote.PerKg = &perKg
	}

	return quote, nil
}

// PricePerKg derives a human-facing per-kilogram price in the source
// currency, applying the same packet/bag divisor logic as Normalize but
// skipping currency conversion.
func (c *Converter) PricePerKg(raw RawQuote) PerKgPrice {
	value := raw.Price
	switch canonicalUnit(raw.Unit) {
	case "KG", "KILOGRAM":
		// already per kg
	case "BAG":
		value = value.Div(c.unitSizeKg(raw.ProductType))
	case "2KG":
		value = value.Div(decimal.NewFromInt(2))
	case "PACKET", "PKT":
		if raw.ProductType == ProductFlour {
			value = value.Div(c.flourPacketKg)
		}
	default:
		value = value.Div(kgPerTon)
	}
	return PerKgPrice{Value: value.Round(2), Currency: raw.Currency}
}

// scaleToTon scales a per-unit price to per metric ton (1000 kg).
func (c *Converter) scaleToTon(price decimal.Decimal, unit string, product ProductType) decimal.Decimal {
	switch canonicalUnit(unit) {
	case "KG", "KILOGRAM":
		return price.Mul(kgPerTon)
	case "BAG":
		return price.Div(c.unitSizeKg(product)).Mul(kgPerTon)
	case "2KG":
		return price.Div(decimal.NewFromInt(2)).Mul(kgPerTon)
	case "PACKET", "PKT":
		if product == ProductFlour {
			return price.Div(c.flourPacketKg).Mul(kgPerTon)
		}
		return price.Mul(kgPerTon) // grain packets are 1 kg
	default:
		// Unknown units are taken as already per metric ton.
		return price
	}
}

// unitSizeKg returns the bag size for grain and the packet size for flour.
func (c *Converter) unitSizeKg(product ProductType) decimal.Decimal {
	if product == ProductFlour {
		return c.flourPacketKg
	}
	return c.grainBagKg
}

// canonicalUnit flattens a source-native unit token: "2 kg" and "2KG"
// compare equal, as do "bag" and "BAG".
func canonicalUnit(unit string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(unit)), " ", "")
}
