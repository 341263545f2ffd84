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

// String renders the build information on one line for `gaitctl version`
// and the proxy's debug page.
func String() string {
	return fmt.Sprintf("gaitsession %s (%s, built %s)", Version, GitSHA, BuildTime)
}
