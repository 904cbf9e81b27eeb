package version

import (
	"embed"
	"io"
	"runtime/debug"
	"strings"
)

//go:embed version.*
var versions embed.FS

// Version is read from version.txt written by go generate, or from the
// module build info
var Version = "unknown"

func init() {
	f, err := versions.Open("version.txt")
	if err != nil {
		if inf, ok := debug.ReadBuildInfo(); ok {
			Version = inf.Main.Version
		}
		return
	}
	defer f.Close()
	if s, err := io.ReadAll(f); err == nil {
		Version = strings.TrimSpace(string(s))
	}
}
