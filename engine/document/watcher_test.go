package document

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "gain.wgsl")
	other := filepath.Join(dir, "other.wgsl")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	var (
		mu      sync.Mutex
		reloads = map[string]string{}
	)
	w, err := NewWatcher(func(path, source string) {
		mu.Lock()
		defer mu.Unlock()
		reloads[path] = source
	}, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Add(watched))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(other, []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("v2"), 0o644))

	abs, err := filepath.Abs(watched)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloads[abs] == "v2"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, reloads, 1)
}

func TestWatcherStopTwice(t *testing.T) {
	w, err := NewWatcher(func(string, string) {}, 0)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
