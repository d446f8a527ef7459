package adapters

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// ZipProvider registers every file entry of a zip archive under
// <container key>/<entry path> using container-entry addressing.
type ZipProvider struct {
	opener ports.ResourceOpenerPort
}

func NewZipProvider(opener ports.ResourceOpenerPort) ZipProvider {
	return ZipProvider{opener: opener}
}

func (p ZipProvider) Name() types.ProviderName {
	return types.ProviderZip
}

func (p ZipProvider) CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error) {
	resource, err := p.opener.Open(ctx, request.Root)
	if err != nil {
		return nil, err
	}
	defer resource.Close()

	reader, err := zip.NewReader(resource, resource.Size())
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("resource is not a zip archive: " + request.Root.String()).
			WithCause(err)
	}
	scheme := archiveScheme(request.Root)
	builder := resolvemap.NewBuilder()
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
			continue
		}
		key := keypath.AnchorEmbeddedKey(request.ContainerKey, file.Name)
		if err := builder.Add(key, types.ComposeEntryURI(scheme, request.Root, file.Name)); err != nil {
			return nil, err
		}
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Int("keys", builder.Len()).
		Msg("scanned zip archive")
	return builder.Build(), nil
}

// archiveScheme is the lower-case extension of the archive, so rule
// packages get "rpk:" URIs and plain archives "zip:".
func archiveScheme(root types.URI) string {
	scheme := strings.TrimPrefix(keypath.Extension(root.Name()), ".")
	if scheme == "" || !isSchemeName(scheme) || types.IsRangeScheme(scheme) {
		return string(types.ProviderZip)
	}
	return scheme
}

func isSchemeName(value string) bool {
	for i, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

var _ ports.ResolveMapProviderPort = ZipProvider{}
