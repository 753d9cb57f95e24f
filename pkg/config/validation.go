package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validatePricingConfig(&cfg.Pricing); err != nil {
		return fmt.Errorf("pricing config: %w", err)
	}

	// Validate sources
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one quote source must be configured")
	}
	for i, source := range cfg.Sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
	}

	// Validate store config
	if cfg.Store.Enabled && cfg.Store.Path == "" {
		return fmt.Errorf("store path must be specified when the store is enabled")
	}

	// Validate logging config
	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	// Validate TLS config
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return fmt.Errorf("TLS cert and key must be specified when TLS is enabled")
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("TLS cert file not found: %s", cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("TLS key file not found: %s", cfg.HTTP.TLS.Key)
		}
	}

	if cfg.WebSocket.Enabled && cfg.WebSocket.Addr == "" {
		return fmt.Errorf("websocket addr must be specified when websocket is enabled")
	}

	return nil
}

func validatePricingConfig(cfg *PricingConfig) error {
	if cfg.ExchangeRate <= 0 {
		return fmt.Errorf("exchange_rate must be > 0, got %v", cfg.ExchangeRate)
	}
	if cfg.GrainBagKg <= 0 {
		return fmt.Errorf("grain_bag_kg must be > 0, got %v", cfg.GrainBagKg)
	}
	if cfg.FlourPacketKg <= 0 {
		return fmt.Errorf("flour_packet_kg must be > 0, got %v", cfg.FlourPacketKg)
	}
	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	// Validate type
	validTypes := []string{"scrape", "stats", "fin", "static"}
	typeValid := false
	for _, t := range validTypes {
		if strings.ToLower(cfg.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return fmt.Errorf("invalid type: %s (must be one of: %s)", cfg.Type, strings.Join(validTypes, ", "))
	}

	// Validate name
	if cfg.Name == "" {
		return fmt.Errorf("name must be specified")
	}

	// Priority should be positive
	if cfg.Priority < 0 {
		return fmt.Errorf("priority must be >= 0")
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	// Validate level
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid level: %s (must be one of: %s)", cfg.Level, strings.Join(validLevels, ", "))
	}

	// Validate format
	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("invalid format: %s (must be 'json' or 'text')", cfg.Format)
	}

	return nil
}
