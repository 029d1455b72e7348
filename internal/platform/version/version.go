package version

import (
	"runtime"
	"time"
)

// Build information, injected via ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const Service = "streamroom"

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime,omitempty"`
}

// Get returns the build information. A non-zero startedAt adds the uptime
// measured against now.
func Get(startedAt, now time.Time) Info {
	info := Info{
		Service:   Service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if !startedAt.IsZero() {
		info.Uptime = now.Sub(startedAt).Round(time.Second).String()
	}
	return info
}
