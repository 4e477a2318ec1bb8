package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDetector(goos, goarch, libc, distro, distroVersion string) *Detector {
	return &Detector{
		goos:   goos,
		goarch: goarch,
		libc:   func() string { return libc },
		distro: func(context.Context) (string, string, error) {
			if distro == "" {
				return "", "", errors.New("no distribution info")
			}
			return distro, distroVersion, nil
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		detector *Detector
		override Overrides
		want     Descriptor
	}{
		{
			name:     "linux glibc generic",
			detector: testDetector("linux", "amd64", LibcGlibc, "fedora", "40"),
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc},
		},
		{
			name:     "ubuntu 22.04 selects flavor",
			detector: testDetector("linux", "arm64", LibcGlibc, "ubuntu", "22.04"),
			want:     Descriptor{OS: OSLinux, Arch: ArchAarch64, Libc: LibcGlibc, Flavor: FlavorUbuntu2004},
		},
		{
			name:     "ubuntu 18.04 stays generic",
			detector: testDetector("linux", "amd64", LibcGlibc, "ubuntu", "18.04"),
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc},
		},
		{
			name:     "distro detection failure is not fatal",
			detector: testDetector("linux", "amd64", LibcGlibc, "", ""),
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc},
		},
		{
			name:     "musl",
			detector: testDetector("linux", "amd64", LibcMusl, "alpine", "3.20"),
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcMusl},
		},
		{
			name:     "darwin has no libc",
			detector: testDetector("darwin", "arm64", "", "", ""),
			want:     Descriptor{OS: OSDarwin, Arch: ArchAarch64},
		},
		{
			name:     "libc override resolves ambiguity",
			detector: testDetector("linux", "amd64", "", "", ""),
			override: Overrides{Libc: "glibc"},
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc},
		},
		{
			name:     "ubuntu os override",
			detector: testDetector("darwin", "amd64", "", "", ""),
			override: Overrides{OS: "ubuntu"},
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc, Flavor: FlavorUbuntu2004},
		},
		{
			name:     "linux os override drops detected flavor",
			detector: testDetector("linux", "amd64", LibcGlibc, "ubuntu", "24.04"),
			override: Overrides{OS: "linux"},
			want:     Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc},
		},
		{
			name:     "cross-target windows from linux",
			detector: testDetector("linux", "arm64", LibcGlibc, "", ""),
			override: Overrides{OS: "windows", Arch: "amd64"},
			want:     Descriptor{OS: OSWindows, Arch: ArchX86_64},
		},
		{
			name:     "macos alias",
			detector: testDetector("linux", "amd64", LibcGlibc, "", ""),
			override: Overrides{OS: "macos", Arch: "arm64"},
			want:     Descriptor{OS: OSDarwin, Arch: ArchAarch64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.detector.Resolve(context.Background(), tt.override)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		detector *Detector
		override Overrides
	}{
		{"ambiguous libc", testDetector("linux", "amd64", "", "", ""), Overrides{}},
		{"unknown os", testDetector("freebsd", "amd64", "", "", ""), Overrides{}},
		{"unknown arch", testDetector("linux", "riscv64", LibcGlibc, "", ""), Overrides{}},
		{"bad libc override", testDetector("linux", "amd64", LibcGlibc, "", ""), Overrides{Libc: "uclibc"}},
		{"libc on darwin", testDetector("darwin", "arm64", "", "", ""), Overrides{Libc: "musl"}},
		{"bad os override", testDetector("linux", "amd64", LibcGlibc, "", ""), Overrides{OS: "plan9"}},
		{"bad arch override", testDetector("linux", "amd64", LibcGlibc, "", ""), Overrides{Arch: "mips"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.detector.Resolve(context.Background(), tt.override)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrUnsupportedPlatform)

			var upErr *UnsupportedPlatformError
			require.ErrorAs(t, err, &upErr)
			require.NotEmpty(t, upErr.Reason)
		})
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testDetector("darwin", "arm64", "", "", "").Resolve(ctx, Overrides{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDescriptorString(t *testing.T) {
	d := Descriptor{OS: OSLinux, Arch: ArchX86_64, Libc: LibcGlibc, Flavor: FlavorUbuntu2004}
	require.Equal(t, "linux/x86_64/glibc+ubuntu20_04", d.String())
	require.Equal(t, "darwin/aarch64", Descriptor{OS: OSDarwin, Arch: ArchAarch64}.String())
}

func TestParseMajorMinor(t *testing.T) {
	tests := []struct {
		in           string
		major, minor int
		ok           bool
	}{
		{"20.04", 20, 4, true},
		{"22.04.3", 22, 4, true},
		{"24", 0, 0, false},
		{"x.y", 0, 0, false},
	}
	for _, tt := range tests {
		major, minor, ok := parseMajorMinor(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		if ok {
			require.Equal(t, tt.major, major, tt.in)
			require.Equal(t, tt.minor, minor, tt.in)
		}
	}
}
