package fin

import (
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func init() {
	// Register all financial API sources
	sources.Register("fin.finnhub", NewFinnhubSourceFromConfig)
}
