// Package version holds build information stamped in at link time.
package version

// Set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)
