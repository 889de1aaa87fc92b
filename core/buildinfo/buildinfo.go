// Package buildinfo carries the version stamped into the relaybot binary.
//
// Release builds set the variables with -ldflags, for example:
//
//	go build -ldflags "-X github.com/m3rciful/relaybot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/relaybot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/relaybot/core/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/relaybot
//
// A plain go build leaves the defaults, and init fills Commit and Date from
// the VCS stamp the toolchain embeds when one is available.
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	fromVCS(info.Settings)
}

func fromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "local" && s.Value != "" {
				Commit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}
