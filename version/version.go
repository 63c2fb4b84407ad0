// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at link time, for example
// -X github.com/grovetools/watchpost/version.Version=v1.2.0.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information of this binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short is "version (commit)", with the commit abbreviated.
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, commit)
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Commit:   %s\n", i.Commit)
	fmt.Fprintf(&b, "  Built:    %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  Go:       %s\n", i.GoVersion)
	fmt.Fprintf(&b, "  Platform: %s", i.Platform)
	return b.String()
}
