// Package version exposes the build identity stamped in at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/texbuilder/internal/version.Version=v1.2.0"
//
// Unstamped builds report "unknown" for every field so the version line never
// renders blank.
package version

import "fmt"

var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the one-line identity printed by the version command.
func String() string {
	return fmt.Sprintf("texbuilder %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
