// Package version provides version information for the price-oracles application.
package version

// Version is the current version of the price-oracles application.
const Version = "1.1.0"

// AgentString returns the full agent string with versioning.
// Format: @palontologist/price-oracles@v{version}
func AgentString() string {
	return "@palontologist/price-oracles@v" + Version
}
