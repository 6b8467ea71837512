// Package lower is the core of the compiler (spec.md §4.4): it turns a
// graph.Graph plus its per-node schedules into a block.Function — nested
// loops, affine indexing, scratch allocations, and partial-tile guards.
//
// There is no original_source/ snapshot of this stage with tiling: graph.rs
// and the accompanying lowerer.rs/node.rs predate the schedule/loop-order
// feature entirely (a single loop per node, no splits). The tiling
// algorithm here is this package's own design built strictly from spec.md
// §4.4's described invariants (bound/iter map merging, index
// reconstruction, Skip guards), expressed in the teacher's struct-returning
// style (pkg/compiler/codegen.go's CodeGen is a string emitter; this
// package instead builds a tree render walks, matching spec.md's
// "target-agnostic IR" requirement).
package lower

import (
	"fmt"
	"sort"

	"indexc/pkg/ast"
	"indexc/pkg/block"
	"indexc/pkg/graph"
)

type ErrorKind int

const (
	MissingSplitEntry ErrorKind = iota
	UnknownAxis
	ArityMismatch
)

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("lower: %s", e.Msg) }

// idents allocates the fresh, monotonically-increasing names every lowered
// identifier category needs (spec.md §4.4's inₖ/bⱼ/iⱼ/sₖ scheme).
type idents struct {
	leaf, iter, scratch, helper int
}

func (a *idents) nextLeaf() string    { a.leaf++; return fmt.Sprintf("in%d", a.leaf-1) }
func (a *idents) nextIter() string    { a.iter++; return fmt.Sprintf("i%d", a.iter-1) }
func (a *idents) nextScratch() string { a.scratch++; return fmt.Sprintf("s%d", a.scratch-1) }
func (a *idents) nextHelper() string  { a.helper++; return fmt.Sprintf("h%d", a.helper-1) }

type ctx struct {
	g       *graph.Graph
	ids     idents
	boundOf map[rune]block.Expr // axis -> bound expression valid in f's own scope, first-binding-wins
	store   map[graph.NodeRef]string
	params  []block.Param
	defs    []block.Statement // helper Function definitions, children before parents (spec.md §4.4.2 step 7)
	exec    []block.Statement // f's own straight-line allocation/Call sequence (spec.md §4.4.2 step 8)
}

// Lower compiles the subgraph rooted at root into a single block.Function
// named name. Every interior node — root included — gets its own helper
// Function and its own loop nest (spec.md §4.4.2 steps 6-8); f's own body
// is the concatenation of every helper definition followed by the
// straight-line sequence of allocations and calls that invoke them in
// post-order. Root writes directly into the "out" ArrayRef parameter with
// no allocation (spec.md §4.4.6).
func Lower(g *graph.Graph, root graph.NodeRef, name string) (*block.Function, error) {
	c := &ctx{g: g, boundOf: map[rune]block.Expr{}, store: map[graph.NodeRef]string{}}

	var axisParams []block.Param
	for _, axis := range []rune(g.Nodes[root].Out) {
		if _, ok := c.boundOf[axis]; ok {
			continue
		}
		ident := "n" + string(axis)
		c.boundOf[axis] = block.Ident{Name: ident}
		axisParams = append(axisParams, block.Param{Ident: ident, Type: block.Type{Kind: block.IntKind}})
	}
	c.store[root] = "out"

	if err := c.lowerSubtree(root); err != nil {
		return nil, err
	}

	params := append([]block.Param{{Ident: "out", Type: block.Type{Kind: block.ArrayRefKind, Mut: true}}}, axisParams...)
	params = append(params, c.params...)

	body := make([]block.Statement, 0, len(c.defs)+len(c.exec))
	body = append(body, c.defs...)
	body = append(body, c.exec...)
	return &block.Function{Name: name, Params: params, Body: body}, nil
}

// lowerSubtree lowers node and, first, every child it has not already
// lowered (memoized via c.store so a node reachable from two parents is
// only compiled once).
func (c *ctx) lowerSubtree(node graph.NodeRef) error {
	n := c.g.Nodes[node]

	if n.Leaf {
		if _, ok := c.store[node]; ok {
			return nil
		}
		ident := c.ids.nextLeaf()
		c.store[node] = ident
		c.params = append(c.params, block.Param{Ident: ident, Type: block.Type{Kind: block.ArrayRefKind}})
		for pos, axis := range []rune(n.Out) {
			if _, ok := c.boundOf[axis]; ok {
				continue
			}
			c.boundOf[axis] = block.ArrayDim{Ident: ident, Axis: pos}
		}
		return nil
	}

	if s, ok := c.store[node]; ok && s != "out" {
		return nil
	}

	if err := checkArity(n); err != nil {
		return err
	}

	for _, child := range n.Children {
		if err := c.lowerSubtree(child); err != nil {
			return err
		}
	}

	isRoot := c.store[node] == "out"
	if _, already := c.store[node]; !already {
		c.store[node] = c.ids.nextScratch()
	}
	storeIdent := c.store[node]

	return c.lowerNode(node, storeIdent, isRoot)
}

func checkArity(n graph.Node) error {
	want := n.Op.Arity()
	if len(n.Children) != want {
		return &Error{Kind: ArityMismatch, Msg: fmt.Sprintf(
			"node with output %q has %d children but op arity %d", n.Out, len(n.Children), want)}
	}
	return nil
}

// loopPlanEntry is one physical nested Loop a node's schedule resolves
// into, with its bound, reconstruction declaration (for split axes past
// rank 0), and partial-tile Skip guard (for the highest-rank loop of a
// split axis) already computed.
type loopPlanEntry struct {
	loopVar string
	bound   block.Expr
	decl    *block.Declaration // nil unless this loop reconstructs a split axis's true index
	skip    *block.Skip        // nil unless this is the highest-rank loop of a split axis
}

// lowerNode builds node's helper Function (its own loop nest, addressed
// entirely through its own parameters rather than f's outer identifiers —
// spec.md §4.4.2 step 7) and appends the matching allocation/Call pair to
// f's execution sub-block (step 8).
func (c *ctx) lowerNode(node graph.NodeRef, storeIdent string, isRoot bool) error {
	n := c.g.Nodes[node]
	outAxes := []rune(n.Out)
	reduceAxes := graph.ReductionAxes(c.g, node)

	axisSet := map[rune]bool{}
	for _, a := range outAxes {
		axisSet[a] = true
	}
	for _, a := range reduceAxes {
		axisSet[a] = true
	}
	var axes []rune
	for a := range axisSet {
		axes = append(axes, a)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })

	// Every bound this node's loop nest needs is addressed through a local
	// Int parameter of its own helper Function, not through f's outer
	// ArrayDim/Ident expressions — those are only valid in f's own scope
	// and are instead passed down as the matching Call argument below.
	localBounds := make(map[rune]block.Expr, len(axes))
	for _, a := range axes {
		localBounds[a] = block.Ident{Name: "b" + string(a)}
	}

	order, err := c.resolveLoopOrder(n, axes)
	if err != nil {
		return err
	}

	plan, trueIdent, err := c.planLoops(n, order, localBounds)
	if err != nil {
		return err
	}

	inner, err := c.buildInnerAssignment(n, node, storeIdent, outAxes, trueIdent, localBounds)
	if err != nil {
		return err
	}

	var helperBody []block.Statement
	if n.Op.Binary != nil || n.Op.UnaryReduction != nil {
		// The output accumulator starts at the op's identity once per
		// output cell (spec.md §4.4.2 step 3), not once per reduction-axis
		// step — a separate, unscheduled loop over outAxes alone runs
		// before the (possibly tiled) accumulation loop nest below.
		helperBody = append(helperBody, c.buildIdentityInit(outAxes, storeIdent, n.Op.Identity(), localBounds)...)
	}
	helperBody = append(helperBody, synthesizeLoops(plan, inner)...)

	helperName := c.ids.nextHelper()
	c.defs = append(c.defs, block.Function{
		Name:   helperName,
		Params: c.helperParams(n, storeIdent, axes),
		Body:   helperBody,
	})

	if !isRoot {
		dims := make([]block.Expr, len(outAxes))
		for i, a := range outAxes {
			dims[i] = c.boundOf[a]
		}
		c.exec = append(c.exec, block.Declaration{
			Ident: storeIdent,
			Type:  block.Type{Kind: block.ArrayKind, Mut: true},
			Init:  block.Alloc{Ident: storeIdent, Dims: dims},
		})
	}
	c.exec = append(c.exec, block.Call{Name: helperName, Args: c.callArgs(n, storeIdent, axes)})

	return nil
}

// helperParams builds a node's helper Function signature: each child's
// store (immutable ArrayRef) in child order, then the node's own store
// (mutable ArrayRef), then one Int parameter per axis the node's body
// needs (spec.md §4.4.2 step 7's "args=[child stores, own store, all
// bound idents]").
func (c *ctx) helperParams(n graph.Node, storeIdent string, axes []rune) []block.Param {
	params := make([]block.Param, 0, len(n.Children)+1+len(axes))
	for _, child := range n.Children {
		params = append(params, block.Param{Ident: c.store[child], Type: block.Type{Kind: block.ArrayRefKind}})
	}
	params = append(params, block.Param{Ident: storeIdent, Type: block.Type{Kind: block.ArrayRefKind, Mut: true}})
	for _, a := range axes {
		params = append(params, block.Param{Ident: "b" + string(a), Type: block.Type{Kind: block.IntKind}})
	}
	return params
}

// callArgs builds the matching actual arguments for a Call to this node's
// helper, evaluated in f's own scope: child stores and the node's own
// store by identifier, and each bound axis's f-scope expression (an
// ArrayDim read off a leaf, or one of f's own axis Int parameters).
func (c *ctx) callArgs(n graph.Node, storeIdent string, axes []rune) []block.Expr {
	args := make([]block.Expr, 0, len(n.Children)+1+len(axes))
	for _, child := range n.Children {
		args = append(args, block.Ident{Name: c.store[child]})
	}
	args = append(args, block.Ident{Name: storeIdent})
	for _, a := range axes {
		args = append(args, c.boundOf[a])
	}
	return args
}

// buildIdentityInit emits a plain, unscheduled loop nest over outAxes that
// sets every output cell to identity exactly once, before the accumulation
// loop nest below runs. This realizes spec.md §4.4.2 step 3's "initial
// value is the op's identity" as an explicit fill: C's malloc has no
// facility for a non-zero fill value, and several ops' identities (Prod's
// 1.0, and any future non-zero identity) are non-zero.
func (c *ctx) buildIdentityInit(outAxes []rune, storeIdent string, identity float32, bounds map[rune]block.Expr) []block.Statement {
	trueIdent := map[rune]string{}
	loopVars := make([]string, len(outAxes))
	for i, a := range outAxes {
		v := c.ids.nextIter()
		loopVars[i] = v
		trueIdent[a] = v
	}

	idx := affineFor(outAxes, trueIdent, bounds)
	body := []block.Statement{
		block.Assignment{Target: block.Ref{Ident: storeIdent, Index: idx}, Op: '=', Value: block.Indexed{Value: identity}},
	}
	for i := len(outAxes) - 1; i >= 0; i-- {
		body = []block.Statement{block.Loop{Index: loopVars[i], Bound: bounds[outAxes[i]], Body: body}}
	}
	return body
}

// resolveLoopOrder returns the effective (possibly default)
// LoopOrderEntry sequence, validating UnknownAxis/MissingSplitEntry.
func (c *ctx) resolveLoopOrder(n graph.Node, axes []rune) ([]ast.LoopOrderEntry, error) {
	if n.Schedule.IsEmpty() {
		order := make([]ast.LoopOrderEntry, len(axes))
		for i, a := range axes {
			order[i] = ast.LoopOrderEntry{Axis: a, Rank: 0}
		}
		return order, nil
	}

	axisSet := map[rune]bool{}
	for _, a := range axes {
		axisSet[a] = true
	}
	for axis := range n.Schedule.Splits {
		if !axisSet[axis] {
			return nil, &Error{Kind: UnknownAxis, Msg: fmt.Sprintf("schedule splits unknown axis %q", axis)}
		}
	}
	for _, e := range n.Schedule.LoopOrder {
		if !axisSet[e.Axis] {
			return nil, &Error{Kind: UnknownAxis, Msg: fmt.Sprintf("loop order references unknown axis %q", e.Axis)}
		}
		if e.Rank > 0 && e.Rank > len(n.Schedule.Splits[e.Axis]) {
			return nil, &Error{Kind: MissingSplitEntry, Msg: fmt.Sprintf(
				"loop order references rank %d of axis %q, which has only %d declared splits",
				e.Rank, e.Axis, len(n.Schedule.Splits[e.Axis]))}
		}
	}
	return n.Schedule.LoopOrder, nil
}

// planLoops walks order outermost-to-innermost, assigning each physical
// loop a fresh index variable, computing its bound against bounds, and —
// for split axes — declaring the reconstructed "true index" identifier
// (base_iter·factor + this_rank's iter) plus a Skip guard at the
// highest-rank loop of that axis family (spec.md §4.4.4). It returns the
// per-loop plan in order and, per axis, the identifier that holds its
// fully-reconstructed runtime index value for use by the innermost
// assignment.
func (c *ctx) planLoops(n graph.Node, order []ast.LoopOrderEntry, bounds map[rune]block.Expr) ([]loopPlanEntry, map[rune]string, error) {
	splits := n.Schedule.Splits

	highestRank := map[rune]int{}
	for _, e := range order {
		if e.Rank > highestRank[e.Axis] {
			highestRank[e.Axis] = e.Rank
		}
	}

	plan := make([]loopPlanEntry, len(order))
	reconVar := map[rune]string{}  // axis -> identifier of its running reconstruction so far
	trueIdent := map[rune]string{} // axis -> identifier holding its final true index

	for i, e := range order {
		factors := splits[e.Axis]
		loopVar := c.ids.nextIter()

		var bound block.Expr
		switch {
		case len(factors) == 0:
			bound = bounds[e.Axis]
		case e.Rank == 0:
			bound = ceilDiv(bounds[e.Axis], block.Int{Value: product(factors)})
		default:
			bound = block.Int{Value: factors[e.Rank-1]}
		}

		entry := loopPlanEntry{loopVar: loopVar, bound: bound}

		switch {
		case len(factors) == 0:
			trueIdent[e.Axis] = loopVar
		case e.Rank == 0:
			reconVar[e.Axis] = loopVar
			trueIdent[e.Axis] = loopVar
		default:
			prev := reconVar[e.Axis]
			factor := factors[e.Rank-1]
			newVar := fmt.Sprintf("%s_%d", prev, e.Rank)
			decl := block.Declaration{
				Ident: newVar,
				Type:  block.Type{Kind: block.IntKind},
				Init: block.Op{Char: '+', Operands: []block.Expr{
					block.Op{Char: '*', Operands: []block.Expr{block.Ident{Name: prev}, block.Int{Value: factor}}},
					block.Ident{Name: loopVar},
				}},
			}
			entry.decl = &decl
			reconVar[e.Axis] = newVar
			trueIdent[e.Axis] = newVar

			if e.Rank == highestRank[e.Axis] {
				skip := block.Skip{Index: newVar, Bound: bounds[e.Axis]}
				entry.skip = &skip
			}
		}

		plan[i] = entry
	}

	return plan, trueIdent, nil
}

// synthesizeLoops builds the nested block.Loop tree outside-in by folding
// plan in reverse, wrapping the previous (more inner) body at each step —
// spec.md §4.4.4's "loop synthesis outside-in per loop_order reversed".
func synthesizeLoops(plan []loopPlanEntry, innermost []block.Statement) []block.Statement {
	body := innermost
	for i := len(plan) - 1; i >= 0; i-- {
		e := plan[i]
		loopBody := body
		if e.skip != nil {
			loopBody = append([]block.Statement{*e.skip}, loopBody...)
		}
		if e.decl != nil {
			loopBody = append([]block.Statement{*e.decl}, loopBody...)
		}
		body = []block.Statement{block.Loop{Index: e.loopVar, Bound: e.bound, Body: loopBody}}
	}
	return body
}

func ceilDiv(a, b block.Expr) block.Expr {
	return block.Op{Char: '/', Operands: []block.Expr{
		block.Op{Char: '+', Operands: []block.Expr{a, block.Op{Char: '-', Operands: []block.Expr{b, block.Int{Value: 1}}}}},
		b,
	}}
}

func product(factors []int) int {
	p := 1
	for _, f := range factors {
		p *= f
	}
	return p
}

// buildInnerAssignment constructs the statement that runs once per
// complete set of iteration variables: the self-accumulating write for
// Binary/UnaryReduction ops (the accumulator's identity seed is handled
// separately by buildIdentityInit, once per output cell), or the direct
// write for NoOp/Elementwise ops.
func (c *ctx) buildInnerAssignment(n graph.Node, node graph.NodeRef, storeIdent string, outAxes []rune, trueIdent map[rune]string, bounds map[rune]block.Expr) ([]block.Statement, error) {
	outIdx := affineFor(outAxes, trueIdent, bounds)
	outRef := block.Ref{Ident: storeIdent, Index: outIdx}

	if n.Op.NoOp != nil {
		in0 := c.childRef(n, node, 0, trueIdent, bounds)
		return []block.Statement{block.Assignment{Target: outRef, Op: '=', Value: in0}}, nil
	}
	if n.Op.Elementwise != nil {
		in0 := c.childRef(n, node, 0, trueIdent, bounds)
		value := block.Op{Char: n.Op.Elementwise.Kind.Char(), Operands: []block.Expr{in0}}
		return []block.Statement{block.Assignment{Target: outRef, Op: '=', Value: value}}, nil
	}

	opChar := n.Op.Char()

	var combined block.Expr
	switch {
	case n.Op.Binary != nil:
		in0 := c.childRef(n, node, 0, trueIdent, bounds)
		in1 := c.childRef(n, node, 1, trueIdent, bounds)
		combined = block.Op{Char: opChar, Operands: []block.Expr{in0, in1}}
	case n.Op.UnaryReduction != nil:
		combined = c.childRef(n, node, 0, trueIdent, bounds)
	default:
		return nil, &Error{Kind: ArityMismatch, Msg: "scalar op has no binary/unary-reduction/elementwise/noop variant set"}
	}

	accumulate := block.Assignment{
		Target: outRef,
		Op:     '=',
		Value:  block.Op{Char: opChar, Operands: []block.Expr{outRef, combined}},
	}

	return []block.Statement{accumulate}, nil
}

// childRef builds the Ref reading child childIdx's stored value, indexed
// by this node's own iteration variables translated through the edge tag
// (the child's index string in this node's local scope).
func (c *ctx) childRef(n graph.Node, node graph.NodeRef, childIdx int, trueIdent map[rune]string, bounds map[rune]block.Expr) block.Expr {
	child := c.g.Nodes[node].Children[childIdx]
	tag := []rune(n.Op.Inputs()[childIdx])
	idx := affineFor(tag, trueIdent, bounds)
	return block.Ref{Ident: c.store[child], Index: idx}
}

// affineFor builds the Σ xₖ·Πⱼ>ₖ bⱼ index expression for the given axis
// sequence.
func affineFor(axes []rune, trueIdent map[rune]string, bounds map[rune]block.Expr) block.Expr {
	xs := make([]block.Expr, len(axes))
	bs := make([]block.Expr, len(axes))
	for i, a := range axes {
		xs[i] = block.Ident{Name: trueIdent[a]}
		bs[i] = bounds[a]
	}
	return block.Affine(xs, bs)
}
