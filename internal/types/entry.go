package types

// Entry is one key → URI association of a resolve map.
type Entry struct {
	Key string
	URI URI
}

// ScanRequest asks a provider to describe the resource tree at Root.
// Keys of discovered resources are anchored below ContainerKey; an empty
// ContainerKey registers them at the top level.
type ScanRequest struct {
	Root         URI
	ContainerKey string
}

// ResourceInfo describes what a URI points at.
type ResourceInfo struct {
	URI  URI
	Kind ResourceKind
	Size int64
	// Path is the local file system path of file: resources.
	Path string
}
