package platform

import (
	"context"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
)

// CPU feature names reported in CPUInfo.Features.
const (
	FeatureSSE2   = "sse2"
	FeatureSSE41  = "sse4_1"
	FeatureSSE42  = "sse4_2"
	FeatureAVX    = "avx"
	FeatureAVX2   = "avx2"
	FeatureAVX512 = "avx512"
	FeatureFMA    = "fma"
	FeatureBMI1   = "bmi1"
	FeatureBMI2   = "bmi2"
	FeatureAES    = "aes"
	FeaturePOPCNT = "popcnt"
	FeatureNEON   = "neon"
	FeatureSVE    = "sve"
	FeatureSVE2   = "sve2"
)

// CPU classes, from the widest vector extension present.
const (
	CPUClassAVX512  = "avx512"
	CPUClassAVX2    = "avx2"
	CPUClassAVX     = "avx"
	CPUClassNoAVX   = "noavx"
	CPUClassSVE2    = "sve2"
	CPUClassSVE     = "sve"
	CPUClassNEON    = "neon"
	CPUClassGeneric = "generic"
)

// CPUInfo describes the host processor.
type CPUInfo struct {
	Vendor        string   `json:"vendor,omitempty"`
	Model         string   `json:"model,omitempty"`
	PhysicalCores int      `json:"cores_physical,omitempty"`
	LogicalCores  int      `json:"cores_logical,omitempty"`
	Features      []string `json:"features"`
	Class         string   `json:"class"`

	// FeaturesKnown is false when the OS does not expose feature flags, in
	// which case a missing feature says nothing about the hardware.
	FeaturesKnown bool `json:"features_known"`
}

// HasFeature reports whether the CPU advertises feature f.
func (c CPUInfo) HasFeature(f string) bool {
	return slices.Contains(c.Features, f)
}

// CPUInfoFunc reads raw processor records; cpu.InfoWithContext in production.
type CPUInfoFunc func(ctx context.Context) ([]cpu.InfoStat, error)

// DetectCPU reads processor details for arch through gopsutil.
func DetectCPU(ctx context.Context, arch string) (CPUInfo, error) {
	return detectCPU(ctx, arch, cpu.InfoWithContext, cpu.CountsWithContext)
}

func detectCPU(ctx context.Context, arch string, info CPUInfoFunc, counts func(context.Context, bool) (int, error)) (CPUInfo, error) {
	stats, err := info(ctx)
	if err != nil {
		return CPUInfo{Features: []string{}, Class: ClassifyCPU(arch, nil)}, err
	}

	var out CPUInfo
	var flags []string
	for _, s := range stats {
		if out.Vendor == "" {
			out.Vendor = strings.TrimSpace(s.VendorID)
		}
		if out.Model == "" {
			out.Model = strings.TrimSpace(s.ModelName)
		}
		flags = append(flags, s.Flags...)
	}
	out.FeaturesKnown = len(flags) > 0 || arch == ArchAarch64
	out.Features = ParseCPUFeatures(arch, flags)
	out.Class = ClassifyCPU(arch, out.Features)

	if n, err := counts(ctx, false); err == nil {
		out.PhysicalCores = n
	}
	if n, err := counts(ctx, true); err == nil {
		out.LogicalCores = n
	}
	return out, nil
}

// ParseCPUFeatures maps raw flags (/proc/cpuinfo "flags" or "Features",
// sysctl machdep.cpu.features) to the feature names above, sorted. Any
// avx512 subset counts as avx512. NEON is part of the aarch64 baseline and
// is always reported there.
func ParseCPUFeatures(arch string, flags []string) []string {
	seen := make(map[string]bool)
	for _, raw := range flags {
		f := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case f == "sse2", f == "avx", f == "avx2", f == "fma", f == "popcnt", f == "sve", f == "sve2":
			seen[f] = true
		case f == "sse4_1", f == "sse4.1":
			seen[FeatureSSE41] = true
		case f == "sse4_2", f == "sse4.2":
			seen[FeatureSSE42] = true
		case f == "avx1.0":
			seen[FeatureAVX] = true
		case strings.HasPrefix(f, "avx512"):
			seen[FeatureAVX512] = true
		case f == "bmi1", f == "bmi2":
			seen[f] = true
		case f == "aes", f == "aesni":
			seen[FeatureAES] = true
		case f == "neon", f == "asimd":
			seen[FeatureNEON] = true
		}
	}
	if arch == ArchAarch64 {
		seen[FeatureNEON] = true
	}

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// ClassifyCPU returns the CPU class for arch given its features.
func ClassifyCPU(arch string, features []string) string {
	has := func(f string) bool { return slices.Contains(features, f) }
	switch arch {
	case ArchX86_64:
		switch {
		case has(FeatureAVX512):
			return CPUClassAVX512
		case has(FeatureAVX2):
			return CPUClassAVX2
		case has(FeatureAVX):
			return CPUClassAVX
		default:
			return CPUClassNoAVX
		}
	case ArchAarch64:
		switch {
		case has(FeatureSVE2):
			return CPUClassSVE2
		case has(FeatureSVE):
			return CPUClassSVE
		case has(FeatureNEON):
			return CPUClassNEON
		}
	}
	return CPUClassGeneric
}
