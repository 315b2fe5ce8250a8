// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/smazurov/mjpegnode/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" doc:"Source revision"`
	BuildDate string `json:"build_date" doc:"Build timestamp"`
	GoVersion string `json:"go_version" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"GOOS/GOARCH"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line description for --version output.
func (i Info) String() string {
	commit := i.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("mjpegnode %s (%s, built %s, %s %s)", i.Version, commit, i.BuildDate, i.GoVersion, i.Platform)
}
