package platform

import (
	"os"
	"path/filepath"
)

// busGPUs does not enumerate PCI devices on Windows; NVIDIA devices are
// found through nvidia-smi.
func busGPUs(_ string) []GPU {
	return nil
}

// cudaDriverLoaded reports whether the CUDA driver library is installed.
func cudaDriverLoaded(root string) bool {
	if root == "" {
		root = os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
	}
	_, err := os.Stat(filepath.Join(root, "System32", "nvcuda.dll"))
	return err == nil
}
