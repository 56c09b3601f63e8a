// Package version reports the build of the peppolsync binary
package version

import "fmt"

// BuildInfo holds version information about the build
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information, set at link time:
// -ldflags "-X 'peppolsync/internal/core/version.version=v0.1.0' -X 'peppolsync/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, Date: date}
}

// String renders the build as "v0.1.0 (abcd, 2025-09-02)"
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", b.Version, b.Commit, b.Date)
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
