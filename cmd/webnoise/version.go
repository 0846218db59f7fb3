package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Release metadata injected at build time via -ldflags. When absent, the
// values are recovered from the binary's embedded build info instead.
var (
	buildVersion = ""
	buildCommit  = ""
	buildDate    = ""
)

// getVersion returns the release version, falling back to the module
// version recorded in the build info, then to "(devel)".
func getVersion() string {
	if buildVersion != "" {
		return buildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// getCommit returns the short VCS revision the binary was built from.
func getCommit() string {
	if buildCommit != "" {
		return buildCommit
	}
	rev := buildSetting("vcs.revision")
	if rev == "" {
		return "unknown"
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	return rev
}

// getDate returns the VCS commit time the binary was built from.
func getDate() string {
	if buildDate != "" {
		return buildDate
	}
	if t := buildSetting("vcs.time"); t != "" {
		return t
	}
	return "unknown"
}

// buildSetting looks up a key in the binary's embedded build settings,
// returning "" when build info is unavailable or the key is absent.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show the webnoise version together with the commit and date it was built from.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webnoise %s (commit %s, built %s)\n",
				getVersion(), getCommit(), getDate())
		},
	}
}
