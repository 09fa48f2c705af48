// Package version provides build information for the macrometer binary.
// Values are set at build time using
// -ldflags "-X github.com/matiasleandrokruk/macrometer/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the release of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "none"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)

// Info is the JSON form reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns the one-line form printed by --version.
func String() string {
	return fmt.Sprintf("macrometer version %s (commit %s, built %s)", Version, Commit, BuildTime)
}
