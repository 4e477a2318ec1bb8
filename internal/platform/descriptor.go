// Package platform detects the host (OS, architecture, libc) tuple and maps
// it to the tokens used in release artifact filenames.
package platform

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

const (
	OSLinux   = "linux"
	OSDarwin  = "darwin"
	OSWindows = "windows"

	ArchX86_64  = "x86_64"
	ArchAarch64 = "aarch64"

	// FlavorUbuntu2004 selects builds linked against Ubuntu 20.04's toolchain.
	FlavorUbuntu2004 = "ubuntu20_04"
)

// Descriptor identifies a target platform.
type Descriptor struct {
	OS   string // linux, darwin, windows
	Arch string // x86_64, aarch64

	// Libc is glibc or musl on Linux and empty elsewhere.
	Libc string

	// Flavor is an optional distribution build flavor (e.g. ubuntu20_04).
	Flavor string
}

// String renders the descriptor as os/arch[/libc][+flavor].
func (d Descriptor) String() string {
	s := d.OS + "/" + d.Arch
	if d.Libc != "" {
		s += "/" + d.Libc
	}
	if d.Flavor != "" {
		s += "+" + d.Flavor
	}
	return s
}

// Overrides are explicit user choices that take precedence over detection.
// Empty fields keep the detected value.
type Overrides struct {
	OS   string
	Arch string
	Libc string
}

// DistroInfo reports a Linux distribution name and version, e.g.
// ("ubuntu", "22.04").
type DistroInfo func(ctx context.Context) (name, version string, err error)

// Detector inspects the running system. The zero value is not usable; use
// NewDetector.
type Detector struct {
	goos   string
	goarch string
	libc   func() string
	distro DistroInfo
}

// NewDetector returns a Detector for the running system.
func NewDetector() *Detector {
	return &Detector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		libc:   DetectLibc,
		distro: hostDistro,
	}
}

func hostDistro(ctx context.Context) (string, string, error) {
	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	return platform, version, nil
}

// Detect returns the descriptor of the running system.
func Detect(ctx context.Context) (Descriptor, error) {
	return NewDetector().Resolve(ctx, Overrides{})
}

// Resolve detects the running platform, applies overrides, and validates
// the result. On Linux an undeterminable libc is an UnsupportedPlatformError
// unless the overrides name one.
func (d *Detector) Resolve(ctx context.Context, o Overrides) (Descriptor, error) {
	desc := Descriptor{OS: d.goos, Arch: d.goarch}
	if os := NormalizeOS(d.goos); os != "" {
		desc.OS = os
	}
	if arch := NormalizeArch(d.goarch); arch != "" {
		desc.Arch = arch
	}

	if desc.OS == OSLinux && o.Libc == "" && (o.OS == "" || NormalizeOS(o.OS) == OSLinux) {
		desc.Libc = d.libc()
		if desc.Libc == LibcGlibc {
			desc.Flavor = d.detectFlavor(ctx)
		}
	}

	desc, err := Override(desc, o)
	if err != nil {
		return Descriptor{}, err
	}
	if err := desc.Validate(); err != nil {
		return Descriptor{}, err
	}
	if err := ctx.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("platform detection cancelled: %w", err)
	}
	return desc, nil
}

// detectFlavor selects the Ubuntu 20.04 build on Ubuntu 20.04 or newer.
// Detection failures fall back to the generic build.
func (d *Detector) detectFlavor(ctx context.Context) string {
	if d.distro == nil {
		return ""
	}
	name, version, err := d.distro(ctx)
	if err != nil {
		return ""
	}
	if strings.ToLower(strings.TrimSpace(name)) != "ubuntu" {
		return ""
	}
	major, minor, ok := parseMajorMinor(version)
	if !ok {
		return ""
	}
	if major > 20 || (major == 20 && minor >= 4) {
		return FlavorUbuntu2004
	}
	return ""
}

func parseMajorMinor(v string) (int, int, bool) {
	majorStr, minorStr, found := strings.Cut(strings.TrimSpace(v), ".")
	if !found {
		return 0, 0, false
	}
	if i := strings.IndexByte(minorStr, '.'); i >= 0 {
		minorStr = minorStr[:i]
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return 0, 0, false
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// Override applies explicit choices on top of a detected descriptor.
//
// An "ubuntu" OS means Linux with glibc and the Ubuntu 20.04 flavor. A plain
// "linux" OS override or a musl libc drops any detected flavor.
func Override(d Descriptor, o Overrides) (Descriptor, error) {
	if o.OS != "" {
		switch strings.ToLower(strings.TrimSpace(o.OS)) {
		case "ubuntu":
			d.OS = OSLinux
			d.Flavor = FlavorUbuntu2004
			if o.Libc == "" {
				d.Libc = LibcGlibc
			}
		default:
			norm := NormalizeOS(o.OS)
			if norm == "" {
				return Descriptor{}, &UnsupportedPlatformError{
					Descriptor: Descriptor{OS: o.OS, Arch: d.Arch},
					Reason:     "unknown operating system",
				}
			}
			if norm != d.OS || norm == OSLinux {
				d.Flavor = ""
			}
			d.OS = norm
			if norm != OSLinux {
				d.Libc = ""
			}
		}
	}

	if o.Arch != "" {
		arch := NormalizeArch(o.Arch)
		if arch == "" {
			return Descriptor{}, &UnsupportedPlatformError{
				Descriptor: Descriptor{OS: d.OS, Arch: o.Arch},
				Reason:     "unknown architecture",
			}
		}
		d.Arch = arch
	}

	if o.Libc != "" {
		libc := strings.ToLower(strings.TrimSpace(o.Libc))
		if libc != LibcGlibc && libc != LibcMusl {
			return Descriptor{}, &UnsupportedPlatformError{
				Descriptor: d,
				Reason:     fmt.Sprintf("unknown libc %q (valid: %s)", o.Libc, strings.Join(ValidLibcTypes, ", ")),
			}
		}
		if d.OS != OSLinux {
			return Descriptor{}, &UnsupportedPlatformError{
				Descriptor: d,
				Reason:     "libc can only be chosen for linux",
			}
		}
		d.Libc = libc
		if libc == LibcMusl {
			d.Flavor = ""
		}
	}

	return d, nil
}

// Validate checks that every field holds a recognized value and that Linux
// descriptors carry a libc.
func (d Descriptor) Validate() error {
	if d.OS == "" || NormalizeOS(d.OS) != d.OS {
		return &UnsupportedPlatformError{Descriptor: d, Reason: "unknown operating system"}
	}
	if d.Arch == "" || NormalizeArch(d.Arch) != d.Arch {
		return &UnsupportedPlatformError{Descriptor: d, Reason: "unknown architecture"}
	}
	if d.OS == OSLinux && d.Libc == "" {
		return &UnsupportedPlatformError{
			Descriptor: d,
			Reason:     "could not determine the C library; pass --libc glibc or --libc musl",
		}
	}
	return nil
}

// NormalizeOS maps GOOS values and common aliases to a descriptor OS.
// Returns "" for unrecognized values.
func NormalizeOS(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return OSLinux
	case "darwin", "macos", "osx":
		return OSDarwin
	case "windows":
		return OSWindows
	default:
		return ""
	}
}

// NormalizeArch maps GOARCH values and common aliases to a descriptor
// architecture. Returns "" for unrecognized values.
func NormalizeArch(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amd64", "x86_64", "x64":
		return ArchX86_64
	case "arm64", "aarch64":
		return ArchAarch64
	default:
		return ""
	}
}
