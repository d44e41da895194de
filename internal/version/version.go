// Package version carries build metadata set with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String is the one-line form printed by -version and the status page.
func String() string {
	return fmt.Sprintf("forager %s (%s, built %s)", Version, GitSHA, BuildTime)
}
