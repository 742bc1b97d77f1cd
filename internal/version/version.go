// Package version holds build metadata injected via ldflags.
package version

// Set at build time with -ldflags "-X ...version.Version=... -X ...version.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
)
