// Package version carries build metadata stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for `hifz version`.
func String() string {
	return fmt.Sprintf("hifz %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}

// UserAgent identifies hifz to the content API.
func UserAgent() string {
	return "hifz/" + Version
}
