package version

import (
	"runtime/debug"
)

// Version and Commit are set with -ldflags for release builds.
var (
	Version = "0.1.0"
	Commit  = ""
)

// Resolve returns the version string. Release builds append the Commit set
// at link time; other builds append the VCS revision recorded by the Go
// toolchain, with a -dirty marker for modified working trees.
func Resolve() string {
	if Commit != "" {
		return resolveVersion(Version, []debug.BuildSetting{{Key: "vcs.revision", Value: Commit}})
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return resolveVersion(Version, nil)
	}
	return resolveVersion(Version, info.Settings)
}

func resolveVersion(base string, settings []debug.BuildSetting) string {
	if base == "" {
		base = "0.0.0"
	}

	var revision string
	var modified bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if revision == "" {
		return base
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}

	suffix := "g" + revision
	if modified {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}
