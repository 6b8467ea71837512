// Package component is the library's top-level entry point: parse a
// component definition into a Component, and splice Components together
// with Chain.
//
// Grounded on original_source/framework/src/lib.rs (the top-level `i`
// function and `Component::chain`), translated from its `Array`/lifetime-
// parameterized Component (arrays were bound in directly as Rust
// references) into a Go struct that instead defers array binding to
// pkg/ffi's call boundary.
package component

import (
	"github.com/pkg/errors"

	"indexc/pkg/ast"
	"indexc/pkg/graph"
	"indexc/pkg/parse"
)

// Component is a parsed, graph-built unit of computation: a Graph plus the
// root node within it the component ultimately computes.
type Component struct {
	Graph *graph.Graph
	Root  graph.NodeRef
	Bank  *ast.ExprBank
}

// Compile parses src and builds its Graph IR, mirroring
// original_source/framework's `i(input)` entry point.
func Compile(src string) (*Component, error) {
	res, err := parse.Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "component: parse")
	}
	if !res.HasFinal {
		return nil, errors.New("component: source has no trailing expression to compile")
	}

	g, root, err := graph.FromExprBank(res.Bank, res.Final)
	if err != nil {
		return nil, errors.Wrap(err, "component: build graph")
	}

	return &Component{Graph: g, Root: root, Bank: res.Bank}, nil
}

// Chain splices c's graph into other's leftmost leaf, returning a new
// Component for the combined computation. Both receivers are left
// untouched: other's graph is deep-copied first so a Component already
// shared elsewhere (e.g. chained into two different consumers) is never
// mutated by a later Chain call.
func (c *Component) Chain(other *Component) (*Component, error) {
	otherGraph, remap := other.Graph.Clone()
	otherRoot := remap[other.Root]

	leftGraph, leftRemap := c.Graph.Clone()
	leftRoot := leftRemap[c.Root]

	offset := len(otherGraph.Nodes)
	otherGraph.Nodes = append(otherGraph.Nodes, leftGraph.Nodes...)
	for i := offset; i < len(otherGraph.Nodes); i++ {
		for j, child := range otherGraph.Nodes[i].Children {
			otherGraph.Nodes[i].Children[j] = child + graph.NodeRef(offset)
		}
		for j, parent := range otherGraph.Nodes[i].Parents {
			otherGraph.Nodes[i].Parents[j] = parent + graph.NodeRef(offset)
		}
	}
	shiftedLeftRoot := leftRoot + graph.NodeRef(offset)

	newRoot, err := graph.Compose(otherGraph, shiftedLeftRoot, otherRoot)
	if err != nil {
		return nil, errors.Wrap(err, "component: chain")
	}

	return &Component{Graph: otherGraph, Root: newRoot, Bank: other.Bank}, nil
}
