// Package version holds build version information.
package version

import "fmt"

var (
	// Version is set at build time with -ldflags "-X".
	Version = "0.1.0"

	// GitCommit is set at build time with -ldflags "-X".
	GitCommit = ""
)

// String returns the human readable version.
func String() string {
	if GitCommit == "" {
		return fmt.Sprintf("requests v%s", Version)
	}
	return fmt.Sprintf("requests v%s (%s)", Version, GitCommit)
}
