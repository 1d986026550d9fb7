package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildWatcher_TriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(path, []byte("start\n"), 0o600))

	w, err := NewBuildWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("Assets/A.cs(1,1): error CS0001: x\n"), 0o600))

	select {
	case <-w.Triggers():
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger after write")
	}
}

func TestBuildWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.log")

	w, err := NewBuildWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	select {
	case <-w.Triggers():
		t.Fatal("unexpected trigger for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewBuildWatcher_RequiresPath(t *testing.T) {
	_, err := NewBuildWatcher("", 0)
	require.Error(t, err)
}
