package watcher

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

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(0, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.Equal(t, DefaultDebounce, watcher.debouncer.delay)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path   string
		filter FileFilter
		want   bool
	}{
		{"/p/src/App.js", SourceFilter, true},
		{"/p/src/App.JSX", SourceFilter, true},
		{"/p/src/style.css", SourceFilter, true},
		{"/p/src/logo.svg", SourceFilter, true},
		{"/p/README.md", SourceFilter, false},
		{"/p/src/App.js~", SourceFilter, false},
		{"/p/node_modules/react/index.js", NoNodeModulesFilter, false},
		{"/p/src/node_modules_helper.js", NoNodeModulesFilter, true},
		{"/p/.git/HEAD", NoGitFilter, false},
		{"/p/src/.App.js.swp", NoHiddenFilter, false},
		{"/p/src/App.js", NoHiddenFilter, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.filter(filepath.FromSlash(tt.path)), tt.path)
	}
}

func TestDirFilters(t *testing.T) {
	assert.True(t, DependencyDirs("/p/node_modules"))
	assert.True(t, DependencyDirs("/p/.git"))
	assert.False(t, DependencyDirs("/p/src"))

	under := UnderDir("/p/dist")
	assert.True(t, under("/p/dist"))
	assert.True(t, under("/p/dist/assets"))
	assert.False(t, under("/p/src"))
}

func TestDebouncerDeduplicates(t *testing.T) {
	d := &Debouncer{
		delay:  10 * time.Millisecond,
		events: make(chan ChangeEvent, 10),
		output: make(chan []ChangeEvent, 1),
	}

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "/p/b.js"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "/p/a.js"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "/p/b.js"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "/p/a.js", events[0].Path)
		assert.Equal(t, "/p/b.js", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestFileWatcherReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "react"), 0o755))

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.SkipDirs(DependencyDirs)
	watcher.AddFilter(SourceFilter)
	watcher.AddFilter(NoNodeModulesFilter)
	require.NoError(t, watcher.AddRecursive(root))

	var (
		mu   sync.Mutex
		seen []string
	)
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			seen = append(seen, filepath.Base(e.Path))
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "react", "index.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "App.js"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "App.js")
	assert.NotContains(t, seen, "index.js")
	assert.NotContains(t, seen, "notes.txt")
}

func TestStopIsIdempotent(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}
