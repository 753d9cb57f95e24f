package static

import (
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

func init() {
	// Register the static fallback source
	sources.Register("static.fallback", NewFallbackSourceFromConfig)
}
