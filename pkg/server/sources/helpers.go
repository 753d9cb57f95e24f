// Package sources provides quote source interfaces and implementations.
package sources

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/palontologist/price-oracles/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a default noop logger.
// Sources should use this to get the logger passed from main.go.
// If no logger is configured, returns a noop logger to prevent nil pointer dereferences.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}

	// return default noop logger if logger not found
	return logging.NewNoopLogger()
}

// TimeoutFromConfig reads a millisecond timeout from the config map, falling
// back to the given default.
func TimeoutFromConfig(config map[string]interface{}, def time.Duration) time.Duration {
	var ms int
	switch t := config["timeout"].(type) {
	case int:
		ms = t
	case int64:
		ms = int(t)
	case float64:
		ms = int(t)
	}
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

var priceTokenRegex = regexp.MustCompile(`[0-9][0-9,]*(\.[0-9]+)?`)

// ExtractPrice pulls the leading numeric token out of free-form price text,
// ignoring thousands separators: "KES 4,050.50 per bag" -> 4050.50.
// Returns false when the text holds no positive number.
func ExtractPrice(text string) (decimal.Decimal, bool) {
	match := priceTokenRegex.FindString(text)
	if match == "" {
		return decimal.Decimal{}, false
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, false
	}
	return price, true
}

// DetectCurrency classifies price text as USD when it mentions dollars,
// KES otherwise. Kenyan sites rarely label shilling prices explicitly.
func DetectCurrency(text string) Currency {
	upper := strings.ToUpper(text)
	if strings.Contains(upper, "USD") || strings.Contains(upper, "$") {
		return CurrencyUSD
	}
	return CurrencyKES
}
