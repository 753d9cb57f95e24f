// Package chain implements the priority-ordered source fallback chain.
package chain

import (
	"fmt"
	"sort"

	"github.com/palontologist/price-oracles/pkg/config"
	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

// Build assembles the chain from configuration: enabled sources in priority
// order, each expanded into its tier passes, with the static fallback tier
// appended when the config does not list one. A source that fails to build
// is skipped with a warning; a missing fallback is an error because it would
// void the completeness guarantee.
func Build(cfg *config.Config, logger *logging.Logger) (*Chain, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	enabled := make([]config.SourceConfig, 0, len(cfg.Sources))
	for _, sourceCfg := range cfg.Sources {
		if sourceCfg.Enabled {
			enabled = append(enabled, sourceCfg)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNoTiers
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})

	tiers := make([]Tier, 0, len(enabled)+1)
	mockDefaults := make(map[string]bool)
	haveStatic := false

	for _, sourceCfg := range enabled {
		if sourceCfg.Config == nil {
			sourceCfg.Config = make(map[string]interface{})
		}
		sourceCfg.Config["logger"] = logger

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Name, sourceCfg.Config)
		if err != nil {
			logger.Warn("Failed to create source",
				"type", sourceCfg.Type, "name", sourceCfg.Name, "error", err)
			continue
		}

		tiers = append(tiers, tiersFor(sourceCfg.Name, source)...)
		if source.Type() == sources.SourceTypeStatic {
			haveStatic = true
		}
		if sourceCfg.GetBool("use_mock", false) {
			mockDefaults[sourceCfg.Name] = true
			logger.Info("Source pinned to offline data", "name", sourceCfg.Name)
		}
	}

	if !haveStatic {
		source, err := sources.Create("static", "fallback", map[string]interface{}{"logger": logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback source: %w", err)
		}
		tiers = append(tiers, tiersFor("fallback", source)...)
	}

	conv := sources.NewConverter(cfg.Pricing.ExchangeRate, cfg.Pricing.GrainBagKg, cfg.Pricing.FlourPacketKg)

	ch := New(tiers, conv, logger)
	if len(mockDefaults) > 0 {
		ch.SetMockDefaults(mockDefaults)
	}

	logger.Info("Built source chain", "tiers", len(tiers))
	return ch, nil
}

// tiersFor expands one source into its chain passes. A dual-class source
// gets a flour pass before its grain pass; the static fallback stays a
// single terminal pass over both classes.
func tiersFor(key string, source sources.Source) []Tier {
	servesGrain := source.Serves(sources.ProductGrain)
	servesFlour := source.Serves(sources.ProductFlour)

	if servesGrain && servesFlour && source.Type() != sources.SourceTypeStatic {
		return []Tier{
			{Key: key, Source: source, Classes: []sources.ProductType{sources.ProductFlour}},
			{Key: key, Source: source, Classes: []sources.ProductType{sources.ProductGrain}},
		}
	}

	classes := make([]sources.ProductType, 0, 2)
	if servesFlour {
		classes = append(classes, sources.ProductFlour)
	}
	if servesGrain {
		classes = append(classes, sources.ProductGrain)
	}
	return []Tier{{Key: key, Source: source, Classes: classes}}
}
