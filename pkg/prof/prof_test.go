//go:build profile

package prof

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CPU:  filepath.Join(dir, "cpu.prof"),
		Heap: filepath.Join(dir, "heap.prof"),
	}

	s, err := Start(opts)
	require.NoError(t, err)

	_, err = Start(opts)
	assert.ErrorIs(t, err, ErrActive)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	for _, path := range []string{opts.CPU, opts.Heap} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), path)
	}

	// A stopped session frees the slot.
	s, err = Start(Options{})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestStartInvalidPath(t *testing.T) {
	_, err := Start(Options{CPU: "/nonexistent/directory/cpu.prof"})
	assert.Error(t, err)

	s, err := Start(Options{})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())
}
