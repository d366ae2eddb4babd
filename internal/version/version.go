// Package version provides build version information.
package version

import "fmt"

// These variables are set at build time via ldflags, for example
// -X github.com/Mdia92/bone-framework-kiroween-edition/internal/version.Version=v1.0.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("bone %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
