package ports

import "context"

// PackageWatcherPort reports changes of package files on disk.
type PackageWatcherPort interface {
	// Watch blocks until ctx is done, calling onChange with the watched
	// path whenever the file at that path (or any file below it, for a
	// directory) changes. Bursts of events are coalesced.
	Watch(ctx context.Context, paths []string, onChange func(path string)) error
}
