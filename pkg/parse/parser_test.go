package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexc/pkg/ast"
)

func TestParseSingleIndexExpr(t *testing.T) {
	res, err := Parse("ik*kj~ijk")
	require.NoError(t, err)
	require.True(t, res.HasFinal)

	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, expr.Index)
	assert.Equal(t, ast.Symbol("ijk"), expr.Index.Out)
	require.NotNil(t, expr.Index.Op.Binary)
	assert.Equal(t, ast.Mul, expr.Index.Op.Binary.Kind)
	assert.Equal(t, ast.Symbol("ik"), expr.Index.Op.Binary.In0)
	assert.Equal(t, ast.Symbol("kj"), expr.Index.Op.Binary.In1)
}

func TestParseUnaryReduction(t *testing.T) {
	res, err := Parse("+ijk~ij")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, expr.Index.Op.UnaryReduction)
	assert.Equal(t, ast.Accum, expr.Index.Op.UnaryReduction.Kind)
}

func TestParseAmbiguousMaxResolvesToReduction(t *testing.T) {
	res, err := Parse(">ijk~ij")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, expr.Index.Op.UnaryReduction)
	assert.Equal(t, ast.UnaryMax, expr.Index.Op.UnaryReduction.Kind)
}

func TestParseAmbiguousMaxResolvesToElementwise(t *testing.T) {
	res, err := Parse(">ij~ij")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, expr.Index.Op.Elementwise)
	assert.Equal(t, ast.Relu, expr.Index.Op.Elementwise.Kind)
}

func TestParseNoOp(t *testing.T) {
	res, err := Parse("ij~ij")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, expr.Index.Op.NoOp)
	assert.Equal(t, ast.Symbol("ij"), expr.Index.Op.NoOp.In0)
}

func TestParseNamedAndCombinator(t *testing.T) {
	res, err := Parse("p: ik*kj~ijk\na: +ijk~ij\np.a")
	require.NoError(t, err)
	require.Len(t, res.Named, 2)
	assert.Equal(t, "p", res.Named[0].Ident)
	assert.Equal(t, "a", res.Named[1].Ident)
	require.True(t, res.HasFinal)

	final, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	require.NotNil(t, final.Combinator)
	assert.Equal(t, res.Named[0].Ref, final.Combinator.Left)
	assert.Equal(t, res.Named[1].Ref, final.Combinator.Right)
}

func TestParseSchedule(t *testing.T) {
	res, err := Parse("ik*kj~ijk | i:2, j:2 | i i' j j' k")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)

	sched := expr.Index.Schedule
	assert.Equal(t, []int{2}, sched.Splits['i'])
	assert.Equal(t, []int{2}, sched.Splits['j'])
	assert.Equal(t, []ast.LoopOrderEntry{
		{Axis: 'i', Rank: 0},
		{Axis: 'i', Rank: 1},
		{Axis: 'j', Rank: 0},
		{Axis: 'j', Rank: 1},
		{Axis: 'k', Rank: 0},
	}, sched.LoopOrder)
}

func TestParseMultiLevelSplit(t *testing.T) {
	res, err := Parse("ik*kj~ijk | i:4:2 | i i' i'' j k")
	require.NoError(t, err)
	expr, ok := res.Bank.Get(res.Final)
	require.True(t, ok)
	assert.Equal(t, []int{4, 2}, expr.Index.Schedule.Splits['i'])
}

func TestParseUnrecognizedSymbol(t *testing.T) {
	_, err := Parse("p.a")
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnrecognizedSymbol, perr.Kind)
	assert.Equal(t, "p", perr.Name)
}

func TestParseInvalidToken(t *testing.T) {
	_, err := Parse("ik*kj")
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, InvalidToken, perr.Kind)
}

func TestParseEmptyFile(t *testing.T) {
	res, err := Parse("")
	require.NoError(t, err)
	assert.False(t, res.HasFinal)
	assert.Empty(t, res.Named)
}
