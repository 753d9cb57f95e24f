package stats

import (
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func init() {
	// Register all statistics API sources
	sources.Register("stats.worldbank", NewWorldBankSourceFromConfig)
}
