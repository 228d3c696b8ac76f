// Package version provides build-time version information.
package version

import "fmt"

// These variables are set at build time using -ldflags:
//
//	go build -ldflags "-X sheetdiff/internal/version.Version=v0.2.0 -X sheetdiff/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// Version is the semantic version
	Version = "0.1.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("sheetdiff %s\ncommit: %s\nbuilt: %s", Version, GitCommit, BuildTime)
}

// Template returns the version template for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, GitCommit, BuildTime)
}
