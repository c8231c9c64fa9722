// Package version reports the build version of the schemaward binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables are set via ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var resolveOnce sync.Once

// resolve fills in whatever ldflags left unset from the module build info.
// This works when installed via "go install github.com/pthm/schemaward/cmd/schemaward@version".
func resolve() {
	resolveOnce.Do(func() {
		if Version != "dev" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				Commit = shortRevision(setting.Value)
			case "vcs.time":
				Date = setting.Value
			}
		}
	})
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Info returns the one-line version banner.
func Info() string {
	resolve()
	return fmt.Sprintf("schemaward %s (commit: %s, built: %s) %s",
		Version, Commit, Date, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	resolve()
	return Version
}
