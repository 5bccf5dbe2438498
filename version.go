// Package echogo provides the version information for echo-go.
package echogo

// Version is the current version of echo-go.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
