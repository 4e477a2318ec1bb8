//go:build !linux && !darwin && !windows

package platform

func busGPUs(_ string) []GPU {
	return nil
}

func cudaDriverLoaded(_ string) bool {
	return false
}
