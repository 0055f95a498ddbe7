// Package buildtime holds values stamped when ffsubmit and ffportald are built.
//
// The release build overwrites VERSION and revision before compiling.
package buildtime

import (
	_ "embed"
	"strings"
)

var (
	//go:embed VERSION
	version string

	//go:embed revision
	revision string
)

// Version is the release version, like "v1.2.0".
func Version() string {
	return strings.TrimSpace(version)
}

// Revision is the git commit which the binary is built from.
func Revision() string {
	return strings.TrimSpace(revision)
}

// String is the version line printed by "version" commands.
func String() string {
	return Version() + " (commit: " + Revision() + ")"
}
