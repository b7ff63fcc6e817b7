// Package version holds build metadata set with -ldflags -X.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String describes the build as "<name> <version> (<commit>, built <date>)".
func String(name string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", name, Version, Commit, Date)
}
