package platform

import "fmt"

// TokenScheme renders the platform token embedded in release artifact
// filenames. Implementations must be pure: the same descriptor always
// yields the same token, and two supported descriptors never share one.
type TokenScheme interface {
	Token(d Descriptor) (string, error)
}

// WasmEdgeScheme is the naming used by upstream WasmEdge releases, e.g.
// manylinux_2_28_x86_64, ubuntu20_04_aarch64, darwin_arm64, windows_x86_64.
type WasmEdgeScheme struct{}

// Token implements TokenScheme.
func (WasmEdgeScheme) Token(d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	switch d.OS {
	case OSLinux:
		if d.Libc != LibcGlibc {
			return "", &UnsupportedPlatformError{Descriptor: d, Reason: "no releases are published for musl"}
		}
		switch d.Flavor {
		case "":
			return "manylinux_2_28_" + d.Arch, nil
		case FlavorUbuntu2004:
			return FlavorUbuntu2004 + "_" + d.Arch, nil
		default:
			return "", &UnsupportedPlatformError{Descriptor: d, Reason: fmt.Sprintf("unknown build flavor %q", d.Flavor)}
		}
	case OSDarwin:
		if d.Arch == ArchAarch64 {
			return "darwin_arm64", nil
		}
		return "darwin_" + d.Arch, nil
	case OSWindows:
		if d.Arch != ArchX86_64 {
			return "", &UnsupportedPlatformError{Descriptor: d, Reason: "only x86_64 is published for windows"}
		}
		return "windows_x86_64", nil
	}
	return "", &UnsupportedPlatformError{Descriptor: d}
}

// TripleScheme names artifacts by target triple, e.g. x86_64-linux-gnu,
// aarch64-apple-darwin, x86_64-pc-windows-msvc. Descriptors carrying a build
// flavor are unsupported.
type TripleScheme struct{}

// Token implements TokenScheme.
func (TripleScheme) Token(d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	switch d.OS {
	case OSLinux:
		if d.Flavor != "" {
			return "", &UnsupportedPlatformError{Descriptor: d, Reason: "build flavors have no target triple"}
		}
		if d.Libc == LibcMusl {
			return d.Arch + "-linux-musl", nil
		}
		return d.Arch + "-linux-gnu", nil
	case OSDarwin:
		return d.Arch + "-apple-darwin", nil
	case OSWindows:
		if d.Arch != ArchX86_64 {
			return "", &UnsupportedPlatformError{Descriptor: d, Reason: "only x86_64 is supported on windows"}
		}
		return "x86_64-pc-windows-msvc", nil
	}
	return "", &UnsupportedPlatformError{Descriptor: d}
}

// ArchiveExt returns the archive extension published for the platform.
func ArchiveExt(d Descriptor) string {
	if d.OS == OSWindows {
		return "zip"
	}
	return "tar.gz"
}

// PluginLibrary returns the filename prefix and suffix shared by plugin
// shared libraries on the platform.
func PluginLibrary(d Descriptor) (prefix, suffix string) {
	switch d.OS {
	case OSWindows:
		return "wasmedgePlugin", ".dll"
	case OSDarwin:
		return "libwasmedgePlugin", ".dylib"
	default:
		return "libwasmedgePlugin", ".so"
	}
}

// SharedLibraryEnv returns the dynamic loader search path variable, or ""
// on platforms that resolve libraries through PATH.
func SharedLibraryEnv(goos string) string {
	switch NormalizeOS(goos) {
	case OSLinux:
		return "LD_LIBRARY_PATH"
	case OSDarwin:
		return "DYLD_LIBRARY_PATH"
	default:
		return ""
	}
}
