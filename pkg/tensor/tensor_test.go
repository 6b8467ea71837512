package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromNestedMatrix(t *testing.T) {
	in := []any{
		[]any{1.0, 2.0},
		[]any{3.0, 4.0},
	}
	tn, err := FromNested(in)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, tn.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4}, tn.Data)
}

func TestFromNestedInconsistentShape(t *testing.T) {
	in := []any{
		[]any{1.0, 2.0},
		[]any{3.0},
	}
	_, err := FromNested(in)
	assert.Error(t, err)
}

func TestFromNestedVector(t *testing.T) {
	tn, err := FromNested([]any{1.0, 2.0, 3.0})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, tn.Shape)
}

func TestAtRowMajor(t *testing.T) {
	tn := New([]int{2, 3})
	assert.Equal(t, 0, tn.At(0, 0))
	assert.Equal(t, 4, tn.At(1, 1))
	assert.Equal(t, 5, tn.At(1, 2))
}
