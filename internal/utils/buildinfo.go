package utils

import (
	"runtime/debug"
)

const (
	unknownVersion = "unknown"
	develVersion   = "(devel)"
)

// Version can be set at build time with -ldflags "-X github.com/temirov/contree/internal/utils.Version=v1.2.3".
var Version = ""

// GetApplicationVersion returns the linker-provided version, falling back to
// the module version recorded in the build info, then to the VCS revision.
func GetApplicationVersion() string {
	if Version != "" {
		return Version
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return unknownVersion
	}
	if buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}
	for _, setting := range buildInfo.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			revision := setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
			return revision
		}
	}
	return unknownVersion
}
