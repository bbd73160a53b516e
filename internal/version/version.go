// Package version holds build metadata, set through -ldflags -X at release
// time. Version falls back to the module version for `go install` builds.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.3.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2026-03-01T10:00:00Z
	GoVersion = runtime.Version()               // go version
)

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
