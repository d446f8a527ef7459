package adapters

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/ports"
)

const defaultWatchDebounce = 200 * time.Millisecond

// PackageWatcherAdapter watches the parent directory of every path so
// files replaced by rename are still seen.
type PackageWatcherAdapter struct {
	Debounce time.Duration
}

func NewPackageWatcherAdapter() PackageWatcherAdapter {
	return PackageWatcherAdapter{Debounce: defaultWatchDebounce}
}

func (a PackageWatcherAdapter) Watch(ctx context.Context, paths []string, onChange func(path string)) error {
	if len(paths) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("no paths to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create file watcher").
			WithCause(err)
	}
	defer watcher.Close()

	watched := make([]string, 0, len(paths))
	dirs := map[string]struct{}{}
	for _, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid watch path " + path).
				WithCause(err)
		}
		watched = append(watched, absolute)
		for _, dir := range watchDirectories(absolute) {
			if _, ok := dirs[dir]; ok {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeNotFound).
					WithMsg("failed to watch " + dir).
					WithCause(err)
			}
			dirs[dir] = struct{}{}
		}
	}

	debounce := a.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	var mu sync.Mutex
	timers := map[string]*time.Timer{}
	defer func() {
		mu.Lock()
		for _, timer := range timers {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			target, ok := matchWatchedPath(watched, event.Name)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Create) {
				watchNewDirectory(ctx, watcher, dirs, event.Name)
			}
			mu.Lock()
			if timer, exists := timers[target]; exists {
				timer.Reset(debounce)
			} else {
				timers[target] = time.AfterFunc(debounce, func() {
					if ctx.Err() != nil {
						return
					}
					log.Ctx(ctx).Debug().Str("path", target).Msg("package changed")
					onChange(target)
				})
			}
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("file watcher failed").
				WithCause(err)
		}
	}
}

// watchDirectories lists the parent of path and, for a directory, every
// directory below it. fsnotify does not recurse on its own.
func watchDirectories(path string) []string {
	dirs := []string{filepath.Dir(path)}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return dirs
	}
	_ = filepath.WalkDir(path, func(current string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if current != path && shouldSkipPackageDir(d.Name()) {
				return filepath.SkipDir
			}
			dirs = append(dirs, current)
		}
		return nil
	})
	return dirs
}

// watchNewDirectory adds a directory created below a watched package, and
// every directory below it, to watcher.
func watchNewDirectory(ctx context.Context, watcher *fsnotify.Watcher, dirs map[string]struct{}, name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() || shouldSkipPackageDir(filepath.Base(name)) {
		return
	}
	_ = filepath.WalkDir(name, func(current string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if current != name && shouldSkipPackageDir(d.Name()) {
			return filepath.SkipDir
		}
		if _, ok := dirs[current]; ok {
			return nil
		}
		if err := watcher.Add(current); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("path", current).Msg("failed to watch new directory")
			return nil
		}
		dirs[current] = struct{}{}
		return nil
	})
}

// matchWatchedPath maps an event path to the watched path it belongs to.
func matchWatchedPath(watched []string, name string) (string, bool) {
	cleaned := filepath.Clean(name)
	for _, path := range watched {
		if cleaned == path || strings.HasPrefix(cleaned, path+string(filepath.Separator)) {
			return path, true
		}
	}
	return "", false
}

var _ ports.PackageWatcherPort = PackageWatcherAdapter{}
