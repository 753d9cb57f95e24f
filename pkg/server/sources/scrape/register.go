package scrape

import (
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func init() {
	// Register all scraping sources
	sources.Register("scrape.amis", NewAMISSourceFromConfig)
	sources.Register("scrape.wamucii", NewWamuciiSourceFromConfig)
}
