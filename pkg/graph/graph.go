// Package graph builds the Graph IR of spec.md §3/§4.2: a DAG of scalar-op
// nodes, edge-tagged with axis renaming, built from an ast.ExprBank.
//
// Grounded on original_source/compiler/src/graph.rs (NodeBody, Node, Graph,
// chain/compose via get_leftmost_leaf/get_leftmost_parent_of_leaf), but
// restructured from that file's Arc<Mutex<Node>> pointer graph into an
// arena: nodes are addressed by integer index into a single Graph.Nodes
// slice (DESIGN NOTES "arena over Arc<Mutex>" preference) so a deep copy is
// a single slice copy plus index remap, and shared subgraphs (a node
// reachable from more than one parent) keep their identity across that
// remap instead of being duplicated.
package graph

import (
	"fmt"

	"indexc/pkg/ast"
)

// NodeRef addresses a Node within a Graph's arena.
type NodeRef int

// Node is either a leaf (an input array, no op) or an interior node (one
// scalar op over 1-2 children, edge-tagged by the op's input index
// strings).
type Node struct {
	Leaf     bool
	Op       ast.ScalarOp
	Out      ast.Symbol
	Schedule ast.Schedule
	Parents  []NodeRef
	Children []NodeRef // length 1 or 2 for interior nodes, in Op.Inputs() order; nil for leaves
}

// EdgeTags returns this node's children's edge tags, i.e. the index
// strings the op's inputs name their children's output axes under. Empty
// for leaves.
func (n Node) EdgeTags() []ast.Symbol {
	if n.Leaf {
		return nil
	}
	return n.Op.Inputs()
}

// Graph is the arena of Nodes a component's expression lowers into.
type Graph struct {
	Nodes []Node
}

// ErrorKind discriminates graph-construction errors (spec.md §4.5).
type ErrorKind int

const (
	ChainTargetIsLeaf ErrorKind = iota
	EmptyExpressionBank
	RankMismatch
)

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("graph: %s", e.Msg) }

func newLeaf(g *Graph, out ast.Symbol) NodeRef {
	g.Nodes = append(g.Nodes, Node{Leaf: true, Out: out})
	return NodeRef(len(g.Nodes) - 1)
}

func newInterior(g *Graph, op ast.ScalarOp, out ast.Symbol, sched ast.Schedule, children ...NodeRef) NodeRef {
	ref := NodeRef(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{Op: op, Out: out, Schedule: sched, Children: children})
	for _, c := range children {
		g.Nodes[c].Parents = append(g.Nodes[c].Parents, ref)
	}
	return ref
}

// FromExprBank builds a Graph for the expression at ref within bank. Named
// expressions referenced more than once (e.g. two distinct chains using
// the same earlier component) map to a single shared node the first time
// they're visited, so the resulting Graph is a true DAG rather than a
// tree; memo is keyed by ast.ExprRef and lives for one FromExprBank call.
func FromExprBank(bank *ast.ExprBank, ref ast.ExprRef) (*Graph, NodeRef, error) {
	if len(bank.Exprs) == 0 {
		return nil, 0, &Error{Kind: EmptyExpressionBank, Msg: "expression bank is empty"}
	}
	g := &Graph{}
	memo := map[ast.ExprRef]NodeRef{}
	root, err := build(g, bank, ref, memo)
	if err != nil {
		return nil, 0, err
	}
	return g, root, nil
}

func build(g *Graph, bank *ast.ExprBank, ref ast.ExprRef, memo map[ast.ExprRef]NodeRef) (NodeRef, error) {
	if n, ok := memo[ref]; ok {
		return n, nil
	}
	expr, ok := bank.Get(ref)
	if !ok {
		return 0, &Error{Kind: EmptyExpressionBank, Msg: fmt.Sprintf("dangling expression reference %d", ref)}
	}

	var node NodeRef
	switch {
	case expr.Index != nil:
		idx := expr.Index
		inputs := idx.Op.Inputs()
		children := make([]NodeRef, len(inputs))
		for i, in := range inputs {
			children[i] = newLeaf(g, in)
		}
		node = newInterior(g, idx.Op, idx.Out, idx.Schedule, children...)

	case expr.Combinator != nil:
		leftRoot, err := build(g, bank, expr.Combinator.Left, memo)
		if err != nil {
			return 0, err
		}
		rightRoot, err := build(g, bank, expr.Combinator.Right, memo)
		if err != nil {
			return 0, err
		}
		node, err = chainInto(g, leftRoot, rightRoot)
		if err != nil {
			return 0, err
		}

	default:
		return 0, &Error{Kind: EmptyExpressionBank, Msg: "empty Expr in bank"}
	}

	memo[ref] = node
	return node, nil
}

// leftmostLeaf walks children[0] repeatedly from root until it reaches a
// leaf, returning the leaf and, if any, its immediate parent and the
// child-slot index within that parent.
func leftmostLeaf(g *Graph, root NodeRef) (leaf NodeRef, parent NodeRef, slot int, hasParent bool) {
	cur := root
	hasParent = false
	for !g.Nodes[cur].Leaf {
		parent = cur
		slot = 0
		hasParent = true
		cur = g.Nodes[cur].Children[0]
	}
	return cur, parent, slot, hasParent
}

// chainInto splices left's root into right's leftmost leaf, matching
// "p.a" in surface syntax: p supplies the value that fills a's first
// (leftmost) still-unbound input. Returns right's root, now with that
// leaf replaced.
func chainInto(g *Graph, leftRoot, rightRoot NodeRef) (NodeRef, error) {
	if g.Nodes[rightRoot].Leaf {
		return 0, &Error{Kind: ChainTargetIsLeaf, Msg: "chain target has no interior node to splice into"}
	}

	leaf, parent, slot, hasParent := leftmostLeaf(g, rightRoot)
	if !hasParent {
		// rightRoot is itself the "parent" search never ran; this only
		// happens if rightRoot is a leaf, already rejected above.
		return 0, &Error{Kind: ChainTargetIsLeaf, Msg: "chain target has no interior node to splice into"}
	}

	if len(g.Nodes[leaf].Out) != len(g.Nodes[leftRoot].Out) {
		return 0, &Error{Kind: RankMismatch, Msg: fmt.Sprintf(
			"chain: leaf %q has rank %d, supplied graph has rank %d",
			g.Nodes[leaf].Out, len(g.Nodes[leaf].Out), len(g.Nodes[leftRoot].Out))}
	}

	g.Nodes[parent].Children[slot] = leftRoot
	g.Nodes[leftRoot].Parents = append(g.Nodes[leftRoot].Parents, parent)
	return rightRoot, nil
}

// Chain is the public entry point used by pkg/component once two
// independently-built graphs need splicing (as opposed to two handles
// within the same ExprBank, which build() above handles during
// construction).
func Chain(g *Graph, leftRoot, rightRoot NodeRef) (NodeRef, error) {
	return chainInto(g, leftRoot, rightRoot)
}

// Compose is the graph-algebra name for the same splice operation
// (framework/src/lib.rs's Component.chain calls into this); kept as a
// distinct name since pkg/component's vocabulary is "compose components",
// not "chain nodes".
func Compose(g *Graph, leftRoot, rightRoot NodeRef) (NodeRef, error) {
	return Chain(g, leftRoot, rightRoot)
}

// Clone deep-copies g into a new Graph, preserving internal node sharing:
// a node reachable from two parents is copied exactly once and both new
// parents reference the single copy. Returns the clone and an old->new
// NodeRef map.
func (g *Graph) Clone() (*Graph, map[NodeRef]NodeRef) {
	out := &Graph{Nodes: make([]Node, len(g.Nodes))}
	remap := make(map[NodeRef]NodeRef, len(g.Nodes))
	for i, n := range g.Nodes {
		remap[NodeRef(i)] = NodeRef(i)
		cp := n
		if n.Children != nil {
			cp.Children = append([]NodeRef(nil), n.Children...)
		}
		if n.Parents != nil {
			cp.Parents = append([]NodeRef(nil), n.Parents...)
		}
		out.Nodes[i] = cp
	}
	return out, remap
}

// ShapeSource is the (child, axis-position) pair that determines an
// interior node output axis's runtime extent.
type ShapeSource struct {
	ChildIdx int
	DimIdx   int
}

// InferShape resolves, for each axis of node's output index, which
// child and dimension position supplies its runtime extent: spec.md
// §4.3 scans child edge tags in reverse order of child and character
// position, first match wins. An axis present in node's output but absent
// from every child's edge tag (malformed program) has no entry in the
// returned map.
func InferShape(g *Graph, node NodeRef) map[rune]ShapeSource {
	n := g.Nodes[node]
	tags := n.EdgeTags()
	sources := make(map[rune]ShapeSource, len(n.Out))

	for _, axis := range n.Out {
		for childIdx := len(tags) - 1; childIdx >= 0; childIdx-- {
			tag := string(tags[childIdx])
			found := -1
			for pos := len(tag) - 1; pos >= 0; pos-- {
				if rune(tag[pos]) == axis {
					found = pos
					break
				}
			}
			if found >= 0 {
				sources[axis] = ShapeSource{ChildIdx: childIdx, DimIdx: found}
				break
			}
		}
	}
	return sources
}

// ReductionAxes returns the axes appearing in some child edge tag of node
// but absent from node's own output index — the axes this node reduces
// over.
func ReductionAxes(g *Graph, node NodeRef) []rune {
	n := g.Nodes[node]
	outSet := make(map[rune]bool, len(n.Out))
	for _, c := range n.Out {
		outSet[c] = true
	}

	seen := map[rune]bool{}
	var axes []rune
	for _, tag := range n.EdgeTags() {
		for _, c := range tag {
			if !outSet[c] && !seen[c] {
				seen[c] = true
				axes = append(axes, c)
			}
		}
	}
	return axes
}
