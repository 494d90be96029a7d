// Package version reports the build version of tuyalocal.
//
// Release builds set the values with ldflags:
//
//	go build -ldflags="-X github.com/muurk/tuyalocal/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/tuyalocal/internal/version.Commit=abc123" ./cmd/tuyalocal
//
// Otherwise they come from the module version (go install ...@v1.2.3) or the
// VCS stamp in the build info, falling back to "dev".
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the short git commit hash
	Commit = ""
)

const shortHashLen = 7

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromBuildInfo(info)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo derives a version and commit from the module and VCS
// settings. Either result may be empty.
func fromBuildInfo(info *debug.BuildInfo) (version, commit string) {
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; rev != "" {
		commit = rev
		if len(commit) > shortHashLen {
			commit = commit[:shortHashLen]
		}
		if settings["vcs.modified"] == "true" {
			commit += "-dirty"
		}
	}

	// A tagged module version wins over a VCS date
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v, commit
	}
	if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
		version = "dev-" + t.UTC().Format("20060102")
	}
	return version, commit
}

// Full returns the version string including the commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
