package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/taxon-go/internal/ontology"
)

func TestWatchSnapshot_Reloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeSnapshot(t, dir, "rel.txt", row("1", "20020131", "1", "100", "200", "116680003"))
	cfg := testConfig(path)

	o, _, err := RunPipeline(t.Context(), cfg, nil, nil)
	require.NoError(t, err)
	holder := ontology.NewHolder(o)

	reloaded := make(chan error, 4)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- WatchSnapshot(ctx, cfg, holder, nil, WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnReload: func(_ *PipelineResult, err error) { reloaded <- err },
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	content := header + "\n" + strings.Join([]string{
		row("1", "20020131", "1", "100", "200", "116680003"),
		row("1", "20210731", "0", "100", "200", "116680003"),
		row("2", "20210731", "1", "100", "300", "116680003"),
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot was not reloaded")
	}

	assert.NotSame(t, o, holder.Load())
	assert.Equal(t, []string{"100"}, holder.Load().GetChildren("300"))
	assert.Empty(t, holder.Load().GetChildren("200"))
	// The previous ontology is untouched.
	assert.Equal(t, []string{"100"}, o.GetChildren("200"))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchSnapshot_FailedReloadKeepsPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeSnapshot(t, dir, "rel.txt", row("1", "20020131", "1", "100", "200", "116680003"))
	cfg := testConfig(path)

	o, _, err := RunPipeline(t.Context(), cfg, nil, nil)
	require.NoError(t, err)
	holder := ontology.NewHolder(o)

	reloaded := make(chan error, 4)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() {
		_ = WatchSnapshot(ctx, cfg, holder, nil, WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnReload: func(_ *PipelineResult, err error) { reloaded <- err },
		})
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("not\ta\tsnapshot\n"), 0o644))

	select {
	case err := <-reloaded:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not attempted")
	}

	assert.Same(t, o, holder.Load())
}

func TestWatchSnapshot_RequiresSnapshot(t *testing.T) {
	t.Parallel()

	err := WatchSnapshot(t.Context(), testConfig(""), ontology.NewHolder(nil), nil, WatchOptions{})
	assert.Error(t, err)
}

func TestIsSnapshotChange(t *testing.T) {
	t.Parallel()

	target, err := filepath.Abs("rel.txt")
	require.NoError(t, err)

	assert.True(t, isSnapshotChange(fsnotify.Event{Name: target, Op: fsnotify.Write}, target))
	assert.True(t, isSnapshotChange(fsnotify.Event{Name: target, Op: fsnotify.Create}, target))
	assert.False(t, isSnapshotChange(fsnotify.Event{Name: target, Op: fsnotify.Chmod}, target))
	assert.False(t, isSnapshotChange(fsnotify.Event{Name: target + ".bak", Op: fsnotify.Write}, target))
}
