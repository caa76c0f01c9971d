package plano

import (
	"fmt"
	"runtime/debug"
)

const modulePath = "github.com/axsh/plano"

// frameworkVersionString describes the plano version the program was built
// against and the program's VCS revision.
// Format: "based on plano <version> <commit>[-dirty]"
// Fallback: "based on plano dev" if build info is unavailable.
func frameworkVersionString() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "based on plano dev"
	}
	return formatBuildInfo(info)
}

func formatBuildInfo(info *debug.BuildInfo) string {
	version := "dev"
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			version = dep.Version
			break
		}
	}
	if version == "dev" && info.Main.Path == modulePath &&
		info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}

	var revision string
	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	result := fmt.Sprintf("based on plano %s", version)
	if revision != "" {
		result += " " + revision
		if modified {
			result += "-dirty"
		}
	}
	return result
}

// versionLine is the last line of the top-level usage text.
func versionLine(cfg Config) string {
	if cfg.Version == "" {
		return frameworkVersionString()
	}
	return fmt.Sprintf("%s %s (%s)", cfg.Name, cfg.Version, frameworkVersionString())
}
