// Package render defines the target-agnostic rendering contract spec.md
// §4.1 leaves as an external collaborator: something that turns a
// block.Function into source text for a concrete backend. pkg/render/c
// supplies the one concrete implementation this repo ships.
package render

import "indexc/pkg/block"

// Renderer turns a lowered Function into backend source text.
type Renderer interface {
	// Render emits fn and returns the complete source text of a
	// compilable translation unit (includes, the function itself, and
	// whatever boilerplate the target needs).
	Render(fn *block.Function) (string, error)

	// FileExtension is the conventional extension for Render's output
	// (e.g. "c"). pkg/build does not read it: it always writes its source
	// file with a .c extension.
	FileExtension() string
}
