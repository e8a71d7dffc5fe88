// Package misc keeps program identity helpers in one place so they could be
// used everywhere without introducing import cycles.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "overstim"

// set by the linker during release builds
var (
	version = "development"
	gitHash = ""
)

// GetAppName returns short program name used for logs, temporary files and
// generated artifacts.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

var readBuildInfo = sync.OnceValue(func() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
})

// GetGitHash returns source revision the program was built from, either set
// by the linker or recovered from build info.
func GetGitHash() string {
	if len(gitHash) != 0 {
		return gitHash
	}
	return readBuildInfo()
}
