// Package version reports the build stamped into rollcall binaries
package version

// BuildInfo describes one build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Service is set by each binary at startup
var Service = "rollcall"

// Info returns the build information. Stamp it with
// -ldflags "-X rollcall/internal/core/version.version=v0.1.0 -X rollcall/internal/core/version.commit=abcd"
func Info() BuildInfo {
	return BuildInfo{
		Service: Service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
