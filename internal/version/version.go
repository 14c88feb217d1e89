// Package version provides build-time version information for stackdist.
package version

import "fmt"

var (
	// Version is the release version, set with -ldflags at build time
	Version = "dev"
	// Commit is the git commit hash
	Commit = "none"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}
