package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLookup(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(dbPath)
	require.NoError(t, err)
	defer c.Close()

	key := Key("ik*kj~ijk", "c")
	_, ok, err := c.Lookup(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Store(key, "deadbeef", "c", "/tmp/out.so"))

	path, ok, err := c.Lookup(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/tmp/out.so", path)
}

func TestKeyIsDeterministicAndTargetSensitive(t *testing.T) {
	a := Key("ik*kj~ijk", "c")
	b := Key("ik*kj~ijk", "c")
	assert.Equal(t, a, b)

	c := Key("ik*kj~ijk", "asm")
	assert.NotEqual(t, a, c)
}
