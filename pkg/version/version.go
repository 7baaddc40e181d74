// Package version holds build version information, overridable at link time.
package version

import "fmt"

var (
	// Version is the semantic version, set via -ldflags at build time.
	Version = "0.3.0-dev"

	// GitCommit is the short commit hash, set via -ldflags.
	GitCommit = "unknown"

	// BuildDate is the build timestamp, set via -ldflags.
	BuildDate = "unknown"
)

// String returns the full version string.
func String() string {
	return fmt.Sprintf("nettally %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
