package platform

// busGPUs reports the Apple GPU unconditionally on macOS; every supported
// Mac has a Metal-capable GPU.
func busGPUs(_ string) []GPU {
	return []GPU{{Vendor: GPUApple}}
}

// cudaDriverLoaded is always false: CUDA is not available on macOS.
func cudaDriverLoaded(_ string) bool {
	return false
}
