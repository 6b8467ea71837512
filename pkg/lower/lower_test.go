package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexc/pkg/block"
	"indexc/pkg/graph"
	"indexc/pkg/parse"
)

func parseAndLower(t *testing.T, src, fnName string) *block.Function {
	t.Helper()
	res, err := parse.Parse(src)
	require.NoError(t, err)
	require.True(t, res.HasFinal)
	g, root, err := graph.FromExprBank(res.Bank, res.Final)
	require.NoError(t, err)
	fn, err := Lower(g, root, fnName)
	require.NoError(t, err)
	return fn
}

func TestLowerReductionSeparatesIdentityInitFromAccumulate(t *testing.T) {
	fn := parseAndLower(t, "+ijk~ij", "reduce")
	assert.Equal(t, "reduce", fn.Name)

	assert.Equal(t, "out", fn.Params[0].Ident)
	assert.Equal(t, block.ArrayRefKind, fn.Params[0].Type.Kind)
	assert.True(t, fn.Params[0].Type.Mut)

	// two Int axis params (i, j) for the root's own output axes
	var intParams int
	for _, p := range fn.Params {
		if p.Type.Kind == block.IntKind {
			intParams++
		}
	}
	assert.Equal(t, 2, intParams)

	helpers := findFunctions(fn.Body)
	require.Len(t, helpers, 1, "a single-node graph gets exactly one helper Function")
	root := helpers[0]

	// Scenario 2 of spec.md §8 (+ijk~ij on a 2x3 matrix) fails when the
	// accumulator's identity seed re-runs on every reduction-axis step
	// instead of once per output cell: the init loop over the two output
	// axes (i, j) must be a separate, earlier statement than the
	// accumulation loop nest over all three axes (i, j, k).
	require.Len(t, root.Body, 2, "identity-init loop and accumulate loop nest must be distinct top-level statements")

	initAssign := deepestLoopBody(t, []block.Statement{root.Body[0]})[0].(block.Assignment)
	_, seedsIdentity := initAssign.Value.(block.Indexed)
	assert.True(t, seedsIdentity, "the first loop must seed the accumulator with the op's identity")

	accumAssign := deepestLoopBody(t, []block.Statement{root.Body[1]})[0].(block.Assignment)
	_, accumReseedsIdentity := accumAssign.Value.(block.Indexed)
	assert.False(t, accumReseedsIdentity, "the accumulate loop must not re-seed the identity on every reduction step")
}

func TestLowerNoOpIsDirectCopy(t *testing.T) {
	fn := parseAndLower(t, "ij~ij", "copy")
	helpers := findFunctions(fn.Body)
	require.Len(t, helpers, 1)
	stmt := deepestLoopBody(t, helpers[0].Body)
	require.Len(t, stmt, 1)
	assign, ok := stmt[0].(block.Assignment)
	require.True(t, ok)
	_, isIndexed := assign.Value.(block.Indexed)
	assert.False(t, isIndexed, "NoOp must not initialize an accumulator")
}

func TestLowerNestsOneHelperFunctionPerInteriorNode(t *testing.T) {
	fn := parseAndLower(t, "p: ik*kj~ijk\na: +ijk~ij\np.a", "matmul")
	helpers := findFunctions(fn.Body)
	require.Len(t, helpers, 2, "the multiply node and the reduce/root node each get their own helper Function")

	for _, h := range helpers {
		var sawCall bool
		for _, s := range fn.Body {
			if call, ok := s.(block.Call); ok && call.Name == h.Name {
				sawCall = true
			}
		}
		assert.True(t, sawCall, "f's own body must Call every helper Function it defines")
	}
}

func TestLowerMatmulChain(t *testing.T) {
	fn := parseAndLower(t, "p: ik*kj~ijk\na: +ijk~ij\np.a", "matmul")
	assert.Equal(t, "out", fn.Params[0].Ident)

	var leafParams int
	for _, p := range fn.Params[1:] {
		if p.Type.Kind == block.ArrayRefKind {
			leafParams++
		}
	}
	assert.Equal(t, 2, leafParams)

	// the multiply's scratch is allocated in f's own body
	var sawAlloc bool
	for _, s := range fn.Body {
		if d, ok := s.(block.Declaration); ok {
			if _, ok := d.Init.(block.Alloc); ok {
				sawAlloc = true
			}
		}
	}
	assert.True(t, sawAlloc)
}

func TestLowerTiledScheduleEmitsSkipGuard(t *testing.T) {
	fn := parseAndLower(t, "ik*kj~ijk | i:2 | i i' j k", "tiled")
	assert.True(t, containsSkip(fn.Body), "tiled schedule must emit a partial-tile Skip guard")
}

func TestLowerUnknownAxisInSchedule(t *testing.T) {
	res, err := parse.Parse("ik*kj~ijk | z:2 | z i j k")
	require.NoError(t, err)
	g, root, err := graph.FromExprBank(res.Bank, res.Final)
	require.NoError(t, err)
	_, err = Lower(g, root, "bad")
	require.Error(t, err)
	lerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnknownAxis, lerr.Kind)
}

func TestLowerMissingSplitEntry(t *testing.T) {
	res, err := parse.Parse("ik*kj~ijk | i:2 | i i' i'' j k")
	require.NoError(t, err)
	g, root, err := graph.FromExprBank(res.Bank, res.Final)
	require.NoError(t, err)
	_, err = Lower(g, root, "bad")
	require.Error(t, err)
	lerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, MissingSplitEntry, lerr.Kind)
}

func containsSkip(stmts []block.Statement) bool {
	for _, s := range stmts {
		switch v := s.(type) {
		case block.Skip:
			return true
		case block.Loop:
			if containsSkip(v.Body) {
				return true
			}
		case block.Function:
			if containsSkip(v.Body) {
				return true
			}
		}
	}
	return false
}

func findFunctions(stmts []block.Statement) []block.Function {
	var out []block.Function
	for _, s := range stmts {
		if fn, ok := s.(block.Function); ok {
			out = append(out, fn)
		}
	}
	return out
}

func deepestLoopBody(t *testing.T, stmts []block.Statement) []block.Statement {
	t.Helper()
	for _, s := range stmts {
		if loop, ok := s.(block.Loop); ok {
			return deepestLoopBody(t, loop.Body)
		}
	}
	return stmts
}
