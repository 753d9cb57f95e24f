package sources

import (
	"testing"
	"time"
)

func TestExtractPrice_Valid(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "bare number",
			text:     "4500",
			expected: "4500",
		},
		{
			name:     "thousands separator",
			text:     "KES 5,400",
			expected: "5400",
		},
		{
			name:     "decimal places",
			text:     "Ksh 154.25 per kg",
			expected: "154.25",
		},
		{
			name:     "surrounding markup",
			text:     "<td class=\"price\"> 3,850.50 </td>",
			expected: "3850.50",
		},
		{
			name:     "first number wins",
			text:     "2,200 - 2,400 per bag",
			expected: "2200",
		},
		{
			name:     "currency symbol",
			text:     "$0.42/kg",
			expected: "0.42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok := ExtractPrice(tt.text)
			if !ok {
				t.Fatalf("ExtractPrice(%q) found no price", tt.text)
			}
			if price.String() != tt.expected {
				t.Errorf("ExtractPrice(%q) = %s, want %s", tt.text, price, tt.expected)
			}
		})
	}
}

func TestExtractPrice_Invalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "no digits", text: "price unavailable"},
		{name: "zero", text: "0"},
		{name: "zero with decimals", text: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if price, ok := ExtractPrice(tt.text); ok {
				t.Errorf("ExtractPrice(%q) = %s, expected no price", tt.text, price)
			}
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		text     string
		expected Currency
	}{
		{text: "USD 280 per tonne", expected: CurrencyUSD},
		{text: "$0.42/kg", expected: CurrencyUSD},
		{text: "KES 5,400 per bag", expected: CurrencyKES},
		{text: "Ksh 154", expected: CurrencyKES},
		{text: "5400", expected: CurrencyKES},
		{text: "", expected: CurrencyKES},
	}

	for _, tt := range tests {
		if got := DetectCurrency(tt.text); got != tt.expected {
			t.Errorf("DetectCurrency(%q) = %s, want %s", tt.text, got, tt.expected)
		}
	}
}

func TestTimeoutFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		expected time.Duration
	}{
		{
			name:     "missing key uses default",
			config:   map[string]interface{}{},
			expected: 10 * time.Second,
		},
		{
			name:     "timeout in milliseconds",
			config:   map[string]interface{}{"timeout": 2500},
			expected: 2500 * time.Millisecond,
		},
		{
			name:     "float from yaml decoding",
			config:   map[string]interface{}{"timeout": float64(5000)},
			expected: 5 * time.Second,
		},
		{
			name:     "non-positive uses default",
			config:   map[string]interface{}{"timeout": 0},
			expected: 10 * time.Second,
		},
		{
			name:     "wrong type uses default",
			config:   map[string]interface{}{"timeout": "soon"},
			expected: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeoutFromConfig(tt.config, 10*time.Second)
			if got != tt.expected {
				t.Errorf("TimeoutFromConfig = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetLoggerFromConfig(t *testing.T) {
	if logger := GetLoggerFromConfig(map[string]interface{}{}); logger == nil {
		t.Error("expected fallback logger for empty config")
	}

	config := map[string]interface{}{"logger": "not a logger"}
	if logger := GetLoggerFromConfig(config); logger == nil {
		t.Error("expected fallback logger for mistyped entry")
	}
}
