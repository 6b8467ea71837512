// Package indexc is the library's top-level convenience wrapper: source
// text in, rendered target source out. It composes pkg/component,
// pkg/lower, and a pkg/render.Renderer — the same four stages
// cmd/indexc's CLI drives explicitly, collapsed into one call for
// library callers.
package indexc

import (
	"github.com/pkg/errors"

	"indexc/pkg/component"
	"indexc/pkg/lower"
	"indexc/pkg/render"
	"indexc/pkg/render/c"
)

// DefaultFunctionName is the symbol pkg/ffi looks up in a built shared
// library.
const DefaultFunctionName = "f"

// Compile parses src, builds its graph, lowers it, and renders it with r
// (pkg/render/c.New() if r is nil).
func Compile(src string, r render.Renderer) (string, error) {
	if r == nil {
		r = c.New()
	}

	comp, err := component.Compile(src)
	if err != nil {
		return "", errors.Wrap(err, "indexc: compile")
	}

	fn, err := lower.Lower(comp.Graph, comp.Root, DefaultFunctionName)
	if err != nil {
		return "", errors.Wrap(err, "indexc: lower")
	}

	out, err := r.Render(fn)
	if err != nil {
		return "", errors.Wrap(err, "indexc: render")
	}
	return out, nil
}
