package lrukv

// Version is the release reported by the version command
const Version = "1.0.0"

// Build metadata, set with
// -ldflags "-X github.com/raniellyferreira/lrukv.GitCommit=..."
var (
	GitCommit string
	BuildTime string
)

// VersionString returns Version with a short commit suffix when one was
// linked in, e.g. "1.0.0+3f2a9c1".
func VersionString() string {
	if GitCommit == "" {
		return Version
	}
	commit := GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return Version + "+" + commit
}

// VersionInfo returns version and build metadata as key/value pairs
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": Version,
	}
	if GitCommit != "" {
		info["commit"] = GitCommit
	}
	if BuildTime != "" {
		info["build_time"] = BuildTime
	}
	return info
}
