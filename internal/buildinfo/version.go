// Package buildinfo describes the running wasmedgeup binary.
package buildinfo

import "runtime/debug"

// version is stamped by release builds:
//
//	go build -ldflags "-X github.com/tsukumogami/wasmedgeup/internal/buildinfo.version=v0.2.0"
var version string

// Info identifies a build.
type Info struct {
	Version   string
	Revision  string
	Dirty     bool
	GoVersion string
}

// Read returns the description of the running binary.
func Read() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if version != "" {
			return Info{Version: version}
		}
		return Info{Version: "unknown"}
	}
	return fromBuildInfo(bi, version)
}

// Version returns the version string of the running binary.
func Version() string {
	return Read().Version
}

// fromBuildInfo prefers a stamped version, then the module version of a
// go install, then "dev-<revision>[-dirty]", then "dev".
func fromBuildInfo(bi *debug.BuildInfo, stamped string) Info {
	info := Info{GoVersion: bi.GoVersion}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.Revision) > 12 {
		info.Revision = info.Revision[:12]
	}

	switch {
	case stamped != "":
		info.Version = stamped
	case bi.Main.Version != "" && bi.Main.Version != "(devel)":
		info.Version = bi.Main.Version
	case info.Revision != "":
		info.Version = "dev-" + info.Revision
		if info.Dirty {
			info.Version += "-dirty"
		}
	default:
		info.Version = "dev"
	}
	return info
}
