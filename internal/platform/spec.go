package platform

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// HostSpec is a report of the host hardware and software that decides which
// plugin builds suit the machine. Detection is best effort: what could not
// be read is left empty and explained in Errors.
type HostSpec struct {
	OS           OSInfo       `json:"os"`
	CPU          CPUInfo      `json:"cpu"`
	GPUs         []GPU        `json:"gpus"`
	Accelerators Accelerators `json:"accelerators"`
	Toolchain    Toolchain    `json:"toolchain"`

	// PlatformToken is the release artifact token for the host, empty when
	// no releases are published for it.
	PlatformToken string   `json:"platform_token,omitempty"`
	Errors        []string `json:"detection_errors"`
}

// OSInfo identifies the operating system.
type OSInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Libc    string `json:"libc,omitempty"`
	Distro  string `json:"distro,omitempty"`
	Version string `json:"version,omitempty"`
	Kernel  string `json:"kernel,omitempty"`
}

// Toolchain holds the paths of GPU vendor tools found on PATH.
type Toolchain struct {
	NvidiaSMI  string `json:"nvidia_smi,omitempty"`
	NVCC       string `json:"nvcc,omitempty"`
	ROCmInfo   string `json:"rocminfo,omitempty"`
	VulkanInfo string `json:"vulkaninfo,omitempty"`
}

// PreferCUDA reports whether CUDA builds of a plugin should be recommended.
func (s HostSpec) PreferCUDA() bool {
	return s.Accelerators.CUDA
}

// PreferNoAVX reports whether builds that avoid AVX should be recommended.
// It is false when the CPU features could not be read.
func (s HostSpec) PreferNoAVX() bool {
	return s.OS.Arch == ArchX86_64 && s.CPU.FeaturesKnown && !s.CPU.HasFeature(FeatureAVX)
}

// SpecDetector gathers a HostSpec. Every source can be replaced in tests.
type SpecDetector struct {
	Platform func(ctx context.Context) (Descriptor, error)
	Host     func(ctx context.Context) (*host.InfoStat, error)
	CPU      func(ctx context.Context, arch string) (CPUInfo, error)
	GPU      *GPUDetector
	LookPath func(file string) (string, error)
}

// NewSpecDetector returns a detector for the running system.
func NewSpecDetector() *SpecDetector {
	return &SpecDetector{
		Platform: Detect,
		Host:     host.InfoWithContext,
		CPU:      DetectCPU,
		GPU:      NewGPUDetector(),
		LookPath: exec.LookPath,
	}
}

// DetectSpec reports the running system.
func DetectSpec(ctx context.Context) HostSpec {
	return NewSpecDetector().Detect(ctx)
}

// Detect gathers the report. It never fails; problems are listed in
// HostSpec.Errors.
func (d *SpecDetector) Detect(ctx context.Context) HostSpec {
	spec := HostSpec{GPUs: []GPU{}, Errors: []string{}}

	desc, err := d.Platform(ctx)
	if err != nil {
		spec.Errors = append(spec.Errors, "platform: "+err.Error())
		desc = Descriptor{OS: NormalizeOS(runtime.GOOS), Arch: NormalizeArch(runtime.GOARCH)}
	} else if token, err := (WasmEdgeScheme{}).Token(desc); err == nil {
		spec.PlatformToken = token
	}
	spec.OS = OSInfo{OS: desc.OS, Arch: desc.Arch, Libc: desc.Libc}

	if info, err := d.Host(ctx); err != nil {
		spec.Errors = append(spec.Errors, "host: "+err.Error())
	} else {
		spec.OS.Distro = info.Platform
		spec.OS.Version = info.PlatformVersion
		spec.OS.Kernel = info.KernelVersion
	}

	cpuInfo, err := d.CPU(ctx, desc.Arch)
	if err != nil {
		spec.Errors = append(spec.Errors, "cpu: "+err.Error())
	}
	spec.CPU = cpuInfo

	gpus, acc, gpuErrs := d.GPU.Detect(ctx)
	if len(gpus) > 0 {
		spec.GPUs = gpus
	}
	spec.Accelerators = acc
	spec.Errors = append(spec.Errors, gpuErrs...)

	look := func(name string) string {
		path, err := d.LookPath(name)
		if err != nil {
			return ""
		}
		return path
	}
	spec.Toolchain = Toolchain{
		NvidiaSMI:  look("nvidia-smi"),
		NVCC:       look("nvcc"),
		ROCmInfo:   look("rocminfo"),
		VulkanInfo: look("vulkaninfo"),
	}
	return spec
}
