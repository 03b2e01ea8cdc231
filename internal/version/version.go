package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/multisense/autoconnect/internal/status"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/multisense/autoconnect/internal/version.Version=v1.2.3 \
//	                   -X github.com/multisense/autoconnect/internal/version.Commit=abc123"
//
// Unset values are filled from the embedded VCS stamp, then from "dev".
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary and the status protocol it speaks.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Protocol  string `json:"protocol"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fillFromSettings(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fillFromSettings reads vcs.* build settings. Tags are not part of the
// stamp, so the version falls back to the commit date.
func fillFromSettings(settings []debug.BuildSetting) {
	var revision, modified, when string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			when = s.Value
		}
	}

	if Commit == "" && revision != "" {
		Commit = shortRevision(revision)
		if modified == "true" {
			Commit += "-dirty"
		}
	}
	if Version == "" && when != "" {
		if t, err := time.Parse(time.RFC3339, when); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Protocol:  status.ServiceVersion,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full returns the version and commit on one line.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// String renders every field for the version command.
func (i Info) String() string {
	return fmt.Sprintf("autoconnect %s (commit: %s)\nstatus protocol: %s\nbuilt with %s for %s",
		i.Version, i.Commit, i.Protocol, i.GoVersion, i.Platform)
}
