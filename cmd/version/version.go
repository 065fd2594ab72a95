package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Default build-time variable.
// These values are overridden via ldflags
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

// BuildInfo describes the binary. The version falls back to the module
// version recorded by the Go toolchain if it is not set via ldflags.
func BuildInfo() string {
	version := Version
	if info, ok := debug.ReadBuildInfo(); ok && version == "unknown-version" && info.Main.Version != "" {
		version = info.Main.Version
	}
	var buildInfo string
	buildInfo += fmt.Sprintln("Version:\t", version)
	buildInfo += fmt.Sprintln("Go version:\t", runtime.Version())
	buildInfo += fmt.Sprintln("Git commit:\t", GitCommit)
	buildInfo += fmt.Sprintln("Built:\t\t", BuildTime)
	buildInfo += fmt.Sprintf("OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return buildInfo
}
