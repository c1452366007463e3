// Package version holds the build version stamped at release time.
package version

// Version is overridden via -ldflags on release builds.
var Version = "0.1.0-dev"
