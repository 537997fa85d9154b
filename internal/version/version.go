// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the `parley version` line.
func String() string {
	return fmt.Sprintf("parley %s (commit=%s, date=%s, go=%s)", Version, resolvedCommit(), Date, runtime.Version())
}

// UserAgent identifies the client to the interview backend.
func UserAgent() string {
	return "parley/" + Version
}

// resolvedCommit falls back to the VCS revision embedded by `go build` when
// no commit was stamped.
func resolvedCommit() string {
	if Commit != "none" && Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			return setting.Value[:12]
		}
	}
	return Commit
}
