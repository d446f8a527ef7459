package app

import "resolvemap/internal/types"

type ScanRequest struct {
	// Root is a local path or a URI.
	Root string
	// ContainerKey overrides the key the root's resources are anchored
	// below. Maps scanned with an explicit key bypass the cache.
	ContainerKey string
	Refresh      bool
}

type ScanResult struct {
	Root         string
	ContainerKey string
	Provider     types.ProviderName
	Keys         int
	Digest       string
	RuleFile     string
	Entries      []types.Entry
}

type ScanAllRequest struct {
	Roots   []string
	Workers int
	Refresh bool
}

type ScanAllResult struct {
	// Results follow the order of the requested roots.
	Results []ScanResult
}

type ResolveRequest struct {
	Root string
	Key  string
	// URIFallback interprets an unregistered key as a percent-encoded URI.
	URIFallback bool
}

type ResolveResult struct {
	Key   string
	URI   string
	Found bool
	// FromFallback is set when the URI was parsed from the key itself.
	FromFallback bool
}

type ReverseRequest struct {
	Root string
	URI  string
}

type ReverseResult struct {
	URI  string
	Keys []string
}

type SearchRequest struct {
	Root    string
	Project string
	Query   string
}

type SearchResult struct {
	Keys []string
	// Joined is the serialized form handed to rule evaluation.
	Joined string
}

type AnchorMode string

const (
	AnchorRelative AnchorMode = "relative"
	AnchorEmbedded AnchorMode = "embedded"
	AnchorReplace  AnchorMode = "replace"
)

type AnchorRequest struct {
	Mode   AnchorMode
	Anchor string
	Key    string
}

type AnchorResult struct {
	Key string
}

type ExportRequest struct {
	Root        string
	Output      string
	Format      string
	Compression string
}

type ExportResult struct {
	Output      string
	Keys        int
	Format      types.SnapshotFormat
	Compression types.Compression
	Digest      string
}

type InspectRequest struct {
	Path string
}

type InspectResult struct {
	Root      string
	Digest    string
	Provider  types.ProviderName
	CreatedAt string
	Entries   int
	RuleFile  string
	Keys      []string
}

type WatchRequest struct {
	Roots []string
	// Rebuild scans a changed root right away instead of on next use.
	Rebuild  bool
	OnReload func(WatchEvent)
}

type WatchEvent struct {
	Root   string
	Digest string
	Keys   int
	Err    error
}
