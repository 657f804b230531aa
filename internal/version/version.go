// Package version reports build metadata for the rwb binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X github.com/meyer/rwb/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const esbuildModule = "github.com/evanw/esbuild"

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Esbuild   string    `json:"esbuild" yaml:"esbuild"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
}

// Get collects the build information, falling back to the module build
// info when ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Esbuild:   "unknown",
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return merge(info, bi)
}

func merge(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "" || info.Version == "dev" {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" || info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime.IsZero() {
				info.BuildTime = parseTime(s.Value)
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}

	if info.Version == "dev" && len(info.GitCommit) >= 7 && info.GitCommit != "unknown" {
		info.Version = "dev-" + info.GitCommit[:7]
	}

	for _, dep := range bi.Deps {
		if dep.Path == esbuildModule {
			info.Esbuild = dep.Version
			if dep.Replace != nil {
				info.Esbuild = dep.Replace.Version
			}
		}
	}

	return info
}

// Short is the one-line form printed by `rwb version`.
func (i Info) Short() string {
	s := "rwb " + i.Version
	if i.GitCommit != "unknown" && len(i.GitCommit) >= 7 && !strings.HasSuffix(i.Version, i.GitCommit[:7]) {
		s += " (" + i.GitCommit[:7] + ")"
	}
	if i.Dirty {
		s += " (dirty)"
	}
	return s
}

// String renders every field on its own line.
func (i Info) String() string {
	lines := []string{i.Short()}
	if !i.IsRelease() {
		lines = append(lines, "Development build, not a tagged release")
	}
	if !i.BuildTime.IsZero() {
		lines = append(lines, "Built: "+i.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines,
		fmt.Sprintf("Go: %s", i.GoVersion),
		fmt.Sprintf("Platform: %s", i.Platform),
		fmt.Sprintf("esbuild: %s", i.Esbuild),
	)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether the version came from a tagged build.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
