// Package build reports version information for oscctl. The version string
// is injected with -ldflags; the commit and Go version come from the build
// info the toolchain embeds.
package build

import (
	"runtime/debug"
	"strings"
)

// Info describes the running binary.
type Info struct {
	Version   string
	GitCommit string
	GitDate   string
	GoVersion string
	// Modified is true when the binary was built from a dirty tree.
	Modified bool
}

// Read combines the injected version with the embedded build info.
func Read(version string) Info {
	info := Info{Version: version}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	return fromBuildInfo(version, bi)
}

func fromBuildInfo(version string, bi *debug.BuildInfo) Info {
	info := Info{Version: version, GoVersion: bi.GoVersion}

	if info.Version == "" || info.Version == "dev" {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.GitCommit = s.Value
		case "vcs.time":
			info.GitDate = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	return info
}

const shortCommit = 12

// String renders "<version> (<commit>[-dirty], <date>, <go>)", leaving out
// whatever is unknown.
func (i Info) String() string {
	version := i.Version
	if version == "" {
		version = "dev"
	}

	var details []string

	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > shortCommit {
			commit = commit[:shortCommit]
		}

		if i.Modified {
			commit += "-dirty"
		}

		details = append(details, commit)
	}

	if i.GitDate != "" {
		details = append(details, i.GitDate)
	}

	if i.GoVersion != "" {
		details = append(details, i.GoVersion)
	}

	if len(details) == 0 {
		return version
	}

	return version + " (" + strings.Join(details, ", ") + ")"
}
