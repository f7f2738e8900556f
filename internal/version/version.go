// Package version exposes the build version, set at link time.
package version

var version = "dev"

// String returns the build version.
func String() string {
	return version
}
