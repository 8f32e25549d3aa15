// Package buildinfo exposes compile-time metadata shared across the CLI.
package buildinfo

// The following variables are overridden via ldflags during release builds.
// Defaults cover local development builds.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)

// IsDevBuild reports whether the binary is a local development build.
// Test-only escape hatches (such as the fixed access token override) are
// honored only when this returns true.
func IsDevBuild() bool {
	return Version == "dev"
}
