// Package version holds the build version of darp.
package version

// Version is overridden at build time with -ldflags "-X github.com/darp-registry/darp/pkg/version.Version=..."
var Version = "dev"
