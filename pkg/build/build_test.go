package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWritesUniqueSourceFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Build("void f() {}", Options{Dir: dir, Compiler: "/bin/false"})
	require.Error(t, err) // /bin/false always fails, exercising the error path

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, filepath.Ext(entries[0].Name()) == ".c")
}

func TestBuildErrorIncludesCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := Build("not valid c", Options{Dir: dir, Compiler: "/bin/false"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/bin/false")
}
