// Package version carries build metadata, set with
// -ldflags "-X ecg-quality/internal/version.Version=v1.2.3".
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String is the one-line build description.
func String() string {
	return fmt.Sprintf("ecgqa %s (commit %s, built %s)", Version, Commit, BuildDate)
}
