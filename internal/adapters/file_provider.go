package adapters

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// FileProvider maps plain resources. A directory root registers every file
// below it by its relative path; any other root registers itself under the
// container key.
type FileProvider struct {
	opener ports.ResourceOpenerPort
}

func NewFileProvider(opener ports.ResourceOpenerPort) FileProvider {
	return FileProvider{opener: opener}
}

func (p FileProvider) Name() types.ProviderName {
	return types.ProviderFile
}

func (p FileProvider) CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error) {
	info, err := p.opener.Stat(ctx, request.Root)
	if err != nil {
		return nil, err
	}
	builder := resolvemap.NewBuilder()
	if info.Kind != types.ResourceKindDirectory {
		key := request.ContainerKey
		if key == "" {
			key = request.Root.Name()
		}
		if err := builder.Add(keypath.Normalize(key), request.Root); err != nil {
			return nil, err
		}
		return builder.Build(), nil
	}

	err = filepath.WalkDir(info.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != info.Path && shouldSkipPackageDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(info.Path, path)
		if err != nil {
			return err
		}
		key := keypath.AnchorEmbeddedKey(request.ContainerKey, filepath.ToSlash(relative))
		return builder.Add(key, types.FileURI(filepath.ToSlash(path)))
	})
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeAlreadyExists || ctx.Err() != nil {
			return nil, err
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to scan directory " + info.Path).
			WithCause(err)
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Int("keys", builder.Len()).
		Msg("scanned directory")
	return builder.Build(), nil
}

func shouldSkipPackageDir(name string) bool {
	switch name {
	case ".git", ".svn", ".hg", "__MACOSX":
		return true
	default:
		return strings.HasPrefix(name, ".resolvemap")
	}
}

var _ ports.ResolveMapProviderPort = FileProvider{}
