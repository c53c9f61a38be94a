// Package version carries build metadata injected at link time.
package version

// Set via ldflags at release build time
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
