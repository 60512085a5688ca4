package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctagger/doctagger/pkg/logger"
)

func TestWatcherDeliversSettledPDF(t *testing.T) {
	dir := t.TempDir()

	var handled atomic.Value
	w := New(dir, func(ctx context.Context, path string) {
		handled.Store(path)
	}, logger.NewTestLogger())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.True(t, w.Running())

	path := filepath.Join(dir, "incoming.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o644))

	deadline := time.Now().Add(10 * time.Second)
	for handled.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	require.NotNil(t, handled.Load(), "handler was never called")
	assert.Equal(t, path, handled.Load())
}

func TestWatcherDoesNotRedeliverWhileHandling(t *testing.T) {
	dir := t.TempDir()

	release := make(chan struct{})
	var calls atomic.Int32
	w := New(dir, func(ctx context.Context, path string) {
		calls.Add(1)
		<-release
	}, logger.NewTestLogger())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "slow.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o644))

	deadline := time.Now().Add(10 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	require.Equal(t, int32(1), calls.Load(), "handler was never called")

	// a write arriving while the handler runs must not dispatch again
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("more")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	time.Sleep(settleDelay + 2*settlePoll)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	time.Sleep(settleDelay + 2*settlePoll)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcherIgnoresNonPDF(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w := New(dir, func(ctx context.Context, path string) {
		calls.Add(1)
	}, logger.NewTestLogger())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(3 * time.Second)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcherDoubleStart(t *testing.T) {
	w := New(t.TempDir(), func(ctx context.Context, path string) {}, logger.NewTestLogger())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherStopIdempotent(t *testing.T) {
	w := New(t.TempDir(), func(ctx context.Context, path string) {}, logger.NewTestLogger())

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.Running())
}
