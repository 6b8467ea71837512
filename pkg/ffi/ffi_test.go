package ffi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataPtrEmptySliceIsZero(t *testing.T) {
	assert.Equal(t, uintptr(0), dataPtr(nil))
	assert.Equal(t, uintptr(0), dataPtr([]float32{}))
}

func TestDataPtrNonEmptySliceIsNonZero(t *testing.T) {
	assert.NotZero(t, dataPtr([]float32{1, 2, 3}))
}
