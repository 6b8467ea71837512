package ffi

import "unsafe"

// dataPtr returns the address of data's backing array as a uintptr
// suitable for passing across the purego call boundary. The caller must
// keep data alive (via Go's normal escape-to-heap rules on a slice held by
// a live *tensor.Tensor) for the duration of the call.
func dataPtr(data []float32) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}
