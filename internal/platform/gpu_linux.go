package platform

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PCI class codes for display controllers (top 16 bits).
const (
	pciClassVGA = "0x0300" // VGA compatible controller
	pciClass3D  = "0x0302" // 3D controller (e.g., NVIDIA Tesla)
)

// PCI vendor IDs for GPU manufacturers.
var pciVendorToGPU = map[string]string{
	"0x10de": GPUNvidia,
	"0x1002": GPUAMD,
	"0x8086": GPUIntel,
}

// gpuPriority orders devices discrete first: nvidia > amd > intel.
var gpuPriority = map[string]int{
	GPUNvidia: 0,
	GPUAMD:    1,
	GPUIntel:  2,
}

// busGPUs scans PCI devices via sysfs for display controllers of known
// vendors, discrete devices first.
func busGPUs(root string) []GPU {
	if root == "" {
		root = "/"
	}
	pattern := filepath.Join(root, "sys", "bus", "pci", "devices", "*", "class")
	classFiles, err := filepath.Glob(pattern)
	if err != nil || len(classFiles) == 0 {
		return nil
	}

	var gpus []GPU
	for _, classFile := range classFiles {
		classData, err := os.ReadFile(classFile)
		if err != nil {
			continue
		}
		if !isDisplayController(strings.TrimSpace(string(classData))) {
			continue
		}

		vendorData, err := os.ReadFile(filepath.Join(filepath.Dir(classFile), "vendor"))
		if err != nil {
			continue
		}
		vendor, ok := pciVendorToGPU[strings.TrimSpace(string(vendorData))]
		if !ok {
			continue
		}
		gpus = append(gpus, GPU{Vendor: vendor})
	}

	sort.SliceStable(gpus, func(i, j int) bool {
		return gpuPriority[gpus[i].Vendor] < gpuPriority[gpus[j].Vendor]
	})
	return gpus
}

// isDisplayController checks if a PCI class code represents a display controller.
// Class codes are in the format "0xCCSSPP" where CC=class, SS=subclass, PP=prog-if.
func isDisplayController(classStr string) bool {
	if len(classStr) < 6 {
		return false
	}
	prefix := classStr[:6]
	return prefix == pciClassVGA || prefix == pciClass3D
}

// cudaDriverLoaded reports whether the NVIDIA kernel driver is loaded.
func cudaDriverLoaded(root string) bool {
	if root == "" {
		root = "/"
	}
	_, err := os.Stat(filepath.Join(root, "proc", "driver", "nvidia", "version"))
	return err == nil
}
