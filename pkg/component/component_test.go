package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSingleExpr(t *testing.T) {
	c, err := Compile("ik*kj~ijk")
	require.NoError(t, err)
	assert.False(t, c.Graph.Nodes[c.Root].Leaf)
}

func TestCompileNamedChain(t *testing.T) {
	c, err := Compile("p: ik*kj~ik\na: ik*kj~ijk\np.a")
	require.NoError(t, err)
	n := c.Graph.Nodes[c.Root]
	assert.Equal(t, "ijk", string(n.Out))
}

func TestChainBetweenTwoComponents(t *testing.T) {
	p, err := Compile("ik*kj~ik")
	require.NoError(t, err)
	a, err := Compile("ik*kj~ijk")
	require.NoError(t, err)

	merged, err := p.Chain(a)
	require.NoError(t, err)

	n := merged.Graph.Nodes[merged.Root]
	assert.Equal(t, "ijk", string(n.Out))
	spliced := merged.Graph.Nodes[n.Children[0]]
	assert.False(t, spliced.Leaf)
}

func TestChainDoesNotMutateOriginals(t *testing.T) {
	p, err := Compile("ik*kj~ik")
	require.NoError(t, err)
	a, err := Compile("ik*kj~ijk")
	require.NoError(t, err)

	originalALeaves := len(a.Graph.Nodes)

	_, err = p.Chain(a)
	require.NoError(t, err)

	assert.Equal(t, originalALeaves, len(a.Graph.Nodes))
	assert.True(t, a.Graph.Nodes[a.Graph.Nodes[a.Root].Children[0]].Leaf)
}
