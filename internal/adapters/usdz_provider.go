package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// USDZProvider registers the entries of a USDZ package by byte range. The
// format requires uncompressed entries, so each entry is a contiguous
// buffer of the container and keeps its archive name.
type USDZProvider struct {
	opener ports.ResourceOpenerPort
}

func NewUSDZProvider(opener ports.ResourceOpenerPort) USDZProvider {
	return USDZProvider{opener: opener}
}

func (p USDZProvider) Name() types.ProviderName {
	return types.ProviderUSDZ
}

func (p USDZProvider) CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error) {
	resource, err := p.opener.Open(ctx, request.Root)
	if err != nil {
		return nil, err
	}
	defer resource.Close()

	reader, err := zip.NewReader(resource, resource.Size())
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("resource is not a usdz package: " + request.Root.String()).
			WithCause(err)
	}
	builder := resolvemap.NewBuilder()
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
			continue
		}
		if file.Method != zip.Store {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("usdz entry %s is compressed", file.Name))
		}
		offset, err := file.DataOffset()
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("failed to locate usdz entry %s", file.Name)).
				WithCause(err)
		}
		length := int64(file.UncompressedSize64)
		key := keypath.AnchorEmbeddedKey(request.ContainerKey, file.Name)
		uri := types.ComposeRangeURI(string(types.ProviderUSDZ), request.Root, offset, length, file.Name)
		if err := builder.Add(key, uri); err != nil {
			return nil, err
		}
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Int("keys", builder.Len()).
		Msg("scanned usdz package")
	return builder.Build(), nil
}

var _ ports.ResolveMapProviderPort = USDZProvider{}
