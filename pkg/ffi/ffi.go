// Package ffi loads a compiled shared library and invokes its exported
// entry point against tensor.Tensor arguments, the last stage of spec.md
// §6's pipeline (parse -> lower -> render -> build -> ffi).
//
// github.com/ebitengine/purego ships as an indirect dependency of the
// teacher's github.com/hajimehoshi/ebiten/v2 (ebiten uses it internally for
// cgo-free platform calls on non-cgo builds); no teacher or pack file calls
// it directly; this package promotes it to a direct dependency and uses its
// public Dlopen/RegisterLibFunc surface for exactly the role spec.md §6
// describes generically ("a foreign-function call into the built
// artifact").
package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"

	"indexc/pkg/tensor"
)

// entryPoint is the C function name pkg/render/c always emits the
// top-level block.Function under (spec.md §4.4.5: every component lowers
// to a single root-named function; cmd/indexc always names it this).
const entryPoint = "f"

// Library is a loaded shared library, kept open for repeated calls.
type Library struct {
	handle uintptr
	call   func(args ...uintptr) uintptr
}

// Load dlopens path and resolves its entryPoint symbol.
func Load(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("ffi: dlopen %q: %w", path, err)
	}

	var call func(args ...uintptr) uintptr
	purego.RegisterLibFunc(&call, handle, entryPoint)

	return &Library{handle: handle, call: call}, nil
}

// Close unloads the library.
func (l *Library) Close() error {
	return purego.Dlclose(l.handle)
}

// Call invokes the library's entry point with out as the mutable output
// tensor, axisExtents as out's own axis extents (spec.md §4.4.5 root
// handling's per-axis Int parameters), and ins as the leaf input tensors
// in the order pkg/lower collected them. Out's backing array must already
// be sized to the product of axisExtents.
func (l *Library) Call(out *tensor.Tensor, axisExtents []int, ins []*tensor.Tensor) error {
	args := make([]uintptr, 0, 1+len(axisExtents)+len(ins))
	args = append(args, dataPtr(out.Data))
	for _, n := range axisExtents {
		args = append(args, uintptr(n))
	}
	for _, in := range ins {
		args = append(args, dataPtr(in.Data))
	}

	l.call(args...)
	return nil
}
