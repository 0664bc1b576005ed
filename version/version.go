// Package version reports the build version of policy-controller.
package version

import (
	"fmt"
	"strings"
)

var (
	// GitCommit is filled in by the linker at build time.
	GitCommit string

	// Version is the semantic version of this build.
	Version = "0.1.0"

	// VersionPrerelease marks a non-final release, e.g. "dev".
	VersionPrerelease = "dev"
)

// GetHumanVersion composes the version parts for display to humans.
func GetHumanVersion() string {
	v := fmt.Sprintf("v%s", Version)
	if VersionPrerelease != "" {
		if !strings.Contains(v, "-"+VersionPrerelease) {
			v += fmt.Sprintf("-%s", VersionPrerelease)
		}
		if GitCommit != "" {
			v += fmt.Sprintf(" (%s)", GitCommit)
		}
	}
	return v
}
