package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"resolvemap/tests/testutil"
)

func TestPackageWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	watchedPath := testutil.WriteFile(t, dir, "pack.zip", []byte("v1"))
	otherPath := testutil.WriteFile(t, dir, "other.zip", []byte("v1"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	changes := make(chan string, 8)
	done := make(chan error, 1)
	watcher := PackageWatcherAdapter{Debounce: 50 * time.Millisecond}
	go func() {
		done <- watcher.Watch(ctx, []string{watchedPath}, func(path string) { changes <- path })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(otherPath, []byte("v2"), 0644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(watchedPath, []byte("v2"), 0644))
	}

	select {
	case changed := <-changes:
		require.Equal(t, watchedPath, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case changed := <-changes:
		t.Fatalf("unexpected second change for %s", changed)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestPackageWatcherDirectory(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "pkg/sub/a.obj", []byte("a"))
	pkg := filepath.Join(root, "pkg")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	changes := make(chan string, 8)
	go func() {
		_ = PackageWatcherAdapter{Debounce: 50 * time.Millisecond}.Watch(ctx, []string{pkg}, func(path string) { changes <- path })
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "sub", "a.obj"), []byte("b"), 0644))

	select {
	case changed := <-changes:
		require.Equal(t, pkg, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestPackageWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "pkg/a.obj", []byte("a"))
	pkg := filepath.Join(root, "pkg")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	changes := make(chan string, 8)
	go func() {
		_ = PackageWatcherAdapter{Debounce: 50 * time.Millisecond}.Watch(ctx, []string{pkg}, func(path string) { changes <- path })
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Mkdir(filepath.Join(pkg, "new"), 0755))
	select {
	case changed := <-changes:
		require.Equal(t, pkg, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("directory creation not reported")
	}

	require.NoError(t, os.WriteFile(filepath.Join(pkg, "new", "b.obj"), []byte("b"), 0644))
	select {
	case changed := <-changes:
		require.Equal(t, pkg, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("write inside new directory not reported")
	}
}

func TestPackageWatcherRejectsEmptyPaths(t *testing.T) {
	err := NewPackageWatcherAdapter().Watch(t.Context(), nil, func(string) {})
	require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestMatchWatchedPath(t *testing.T) {
	watched := []string{"/data/pkg", "/data/pack.zip"}
	tests := []struct {
		name  string
		event string
		want  string
		ok    bool
	}{
		{name: "exact", event: "/data/pack.zip", want: "/data/pack.zip", ok: true},
		{name: "below directory", event: "/data/pkg/sub/a.obj", want: "/data/pkg", ok: true},
		{name: "sibling prefix", event: "/data/pkg2/a.obj"},
		{name: "unrelated", event: "/data/other.zip"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchWatchedPath(watched, tt.event)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
