package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"resolvemap/internal/adapters"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// Export writes the map of a package as a snapshot that the snapshot
// provider can load later without rescanning.
func (s Service) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	output := strings.TrimSpace(req.Output)
	if output == "" {
		return ExportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is required")
	}
	options, err := s.storeOptions(req.Format, req.Compression)
	if err != nil {
		return ExportResult{}, err
	}
	root, err := rootURI(req.Root)
	if err != nil {
		return ExportResult{}, err
	}
	m, provider, err := s.loadWithProvider(ctx, root)
	if err != nil {
		return ExportResult{}, err
	}
	digest, err := s.Fingerprint.Fingerprint(ctx, root)
	if err != nil {
		return ExportResult{}, err
	}

	snapshot := adapters.MapToSnapshot(m)
	snapshot.Root = root.String()
	snapshot.Digest = digest
	snapshot.Provider = provider
	snapshot.CreatedAt = s.now().Format(time.RFC3339)
	if err := s.Store.Save(output, snapshot, options); err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Output:      output,
		Keys:        m.Len(),
		Format:      options.Format,
		Compression: options.Compression,
		Digest:      digest,
	}, nil
}

func (s Service) Inspect(req InspectRequest) (InspectResult, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("snapshot path is required")
	}
	snapshot, err := s.Store.Load(path)
	if err != nil {
		return InspectResult{}, err
	}
	m, err := adapters.SnapshotToMap(snapshot)
	if err != nil {
		return InspectResult{}, err
	}
	return InspectResult{
		Root:      snapshot.Root,
		Digest:    snapshot.Digest,
		Provider:  snapshot.Provider,
		CreatedAt: snapshot.CreatedAt,
		Entries:   m.Len(),
		RuleFile:  resolvemap.RuleFileEntry(m),
		Keys:      m.Keys(),
	}, nil
}

func (s Service) storeOptions(format string, compression string) (types.StoreOptions, error) {
	options := types.StoreOptions{Format: s.Config.Format, Compression: s.Config.Compression}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
	case string(types.SnapshotFormatCBOR):
		options.Format = types.SnapshotFormatCBOR
	case string(types.SnapshotFormatYAML):
		options.Format = types.SnapshotFormatYAML
	default:
		return types.StoreOptions{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown snapshot format %q", format))
	}
	if value := strings.ToLower(strings.TrimSpace(compression)); value != "" {
		parsed, ok := types.ParseCompression(value)
		if !ok {
			return types.StoreOptions{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown compression %q", compression))
		}
		options.Compression = parsed
	}
	if options.Format == types.SnapshotFormatYAML {
		options.Compression = types.CompressionNone
	}
	return options, nil
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}
