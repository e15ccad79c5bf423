// Package version carries build metadata injected at link time.
package version

import "runtime"

var (
	// Version is the semantic version, injected via -ldflags.
	Version = "dev"
	// GitCommit is the git commit hash, injected at build time.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, injected at build time.
	BuildDate = "unknown"
)

type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
