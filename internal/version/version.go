// Package version carries build identification, set via -ldflags at
// release time.
package version

var (
	// Version is the application version.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Short returns a one-line version string for logs and status output.
func Short() string {
	if GitSHA == "unknown" {
		return Version
	}
	return Version + " (" + GitSHA + ")"
}
