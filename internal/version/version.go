// Package version provides build information for the job engine.
package version

import "fmt"

// Version and Commit are set at build time:
//
//	go build -ldflags "-X github.com/AaronLay10/SentientJobs/internal/version.Version=x.y.z -X github.com/AaronLay10/SentientJobs/internal/version.Commit=abc123"
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// String renders the version for CLI output.
func String() string {
	return fmt.Sprintf("jobengine %s (%s)", Version, Commit)
}
