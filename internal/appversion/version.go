// Package appversion reports the concierge build version.
package appversion

import (
	"fmt"
	"runtime/debug"
)

// Set at build time via -ldflags "-X concierge/internal/appversion.version=...".
var (
	version = "dev" //nolint:gochecknoglobals // ldflags requires package-level var
	commit  = ""    //nolint:gochecknoglobals // ldflags requires package-level var
)

// String returns the current version. Without ldflags it falls back to the
// module version recorded by `go install`, then to "dev".
func String() string {
	if version != "dev" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// Long returns the version with the commit when one was stamped.
func Long() string {
	if commit == "" {
		return String()
	}
	return fmt.Sprintf("%s (%s)", String(), commit)
}
