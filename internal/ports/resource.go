package ports

import (
	"context"
	"io"

	"resolvemap/internal/types"
)

// Resource is random access to the bytes behind a URI.
type Resource interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// ResourceOpenerPort opens file: URIs and the composite URIs produced by
// providers, including nested ones.
type ResourceOpenerPort interface {
	Open(ctx context.Context, uri types.URI) (Resource, error)
	Stat(ctx context.Context, uri types.URI) (types.ResourceInfo, error)
}

// ContentSnifferPort guesses a MIME type from the leading bytes of a
// resource. Unknown content yields "".
type ContentSnifferPort interface {
	Sniff(resource Resource) (string, error)
}

// FingerprintPort digests the content behind a URI.
type FingerprintPort interface {
	Fingerprint(ctx context.Context, uri types.URI) (string, error)
}
