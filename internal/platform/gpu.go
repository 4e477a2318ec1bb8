package platform

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// GPU vendor values reported by detection.
const (
	GPUNvidia = "nvidia"
	GPUAMD    = "amd"
	GPUIntel  = "intel"
	GPUApple  = "apple"
)

// ValidGPUVendors lists the recognized GPU vendor values.
var ValidGPUVendors = []string{GPUNvidia, GPUAMD, GPUIntel, GPUApple}

// GPU is one graphics device found on the host.
type GPU struct {
	Vendor string `json:"vendor"`
	Model  string `json:"model,omitempty"`

	// MemoryMB is the device memory as reported by the vendor tool.
	MemoryMB int `json:"memory_mb,omitempty"`

	// CUDA is set for NVIDIA devices visible to the CUDA driver.
	CUDA *CUDADevice `json:"cuda,omitempty"`
}

// CUDADevice carries the CUDA driver details of an NVIDIA device.
type CUDADevice struct {
	DriverVersion     string `json:"driver_version,omitempty"`
	ComputeCapability string `json:"compute_capability,omitempty"`
	UUID              string `json:"uuid,omitempty"`
}

// Accelerators summarizes which GPU compute stacks are usable.
type Accelerators struct {
	CUDA   bool `json:"cuda"`
	ROCm   bool `json:"rocm"`
	Vulkan bool `json:"vulkan"`
}

// GPUDetector finds GPUs through the PCI bus and the vendor tools on PATH.
type GPUDetector struct {
	// Root prefixes sysfs and procfs paths. Empty means "/".
	Root string

	LookPath func(file string) (string, error)
	Run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewGPUDetector returns a detector for the running system.
func NewGPUDetector() *GPUDetector {
	return &GPUDetector{
		LookPath: exec.LookPath,
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// DetectGPUs reports the GPUs of the running system.
func DetectGPUs(ctx context.Context) ([]GPU, Accelerators, []string) {
	return NewGPUDetector().Detect(ctx)
}

// Detect returns the GPUs found, the usable accelerator stacks and any
// detection errors. Devices reported by nvidia-smi replace the bare PCI
// entries for NVIDIA hardware. CUDA is available when nvidia-smi lists a
// device or the NVIDIA kernel driver is loaded.
func (d *GPUDetector) Detect(ctx context.Context) ([]GPU, Accelerators, []string) {
	var errs []string
	gpus := busGPUs(d.Root)

	var acc Accelerators
	if path, err := d.LookPath("nvidia-smi"); err == nil {
		out, err := d.Run(ctx, path,
			"--query-gpu=name,uuid,memory.total,driver_version,compute_cap",
			"--format=csv,noheader,nounits")
		if err != nil {
			errs = append(errs, "nvidia-smi: "+err.Error())
		} else if nvidia := parseNvidiaSMI(out); len(nvidia) > 0 {
			gpus = append(withoutVendor(gpus, GPUNvidia), nvidia...)
			acc.CUDA = true
		}
	}
	if !acc.CUDA && cudaDriverLoaded(d.Root) {
		acc.CUDA = true
	}
	if _, err := d.LookPath("rocminfo"); err == nil {
		acc.ROCm = true
	}
	if _, err := d.LookPath("vulkaninfo"); err == nil {
		acc.Vulkan = true
	}
	return gpus, acc, errs
}

// parseNvidiaSMI reads the CSV output of
// nvidia-smi --query-gpu=name,uuid,memory.total,driver_version,compute_cap.
func parseNvidiaSMI(out []byte) []GPU {
	var gpus []GPU
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		cols := strings.Split(sc.Text(), ",")
		if len(cols) < 5 {
			continue
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		mem, _ := strconv.Atoi(cols[2])
		gpus = append(gpus, GPU{
			Vendor:   GPUNvidia,
			Model:    cols[0],
			MemoryMB: mem,
			CUDA: &CUDADevice{
				UUID:              cols[1],
				DriverVersion:     cols[3],
				ComputeCapability: cols[4],
			},
		})
	}
	return gpus
}

func withoutVendor(gpus []GPU, vendor string) []GPU {
	out := gpus[:0]
	for _, g := range gpus {
		if g.Vendor != vendor {
			out = append(out, g)
		}
	}
	return out
}
