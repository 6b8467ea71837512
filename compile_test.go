package indexc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMatmulChain(t *testing.T) {
	src := "p: ik*kj~ijk\na: +ijk~ij\np.a"
	out, err := Compile(src, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "void f(")
}

func TestCompileParseErrorPropagates(t *testing.T) {
	_, err := Compile("ik*kj", nil)
	assert.Error(t, err)
}

func TestCompileEmptySourceErrors(t *testing.T) {
	_, err := Compile("", nil)
	assert.Error(t, err)
}
