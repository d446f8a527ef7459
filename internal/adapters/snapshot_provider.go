package adapters

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// SnapshotProvider loads a map exported earlier. Snapshot keys are
// complete keys and are registered unchanged.
type SnapshotProvider struct {
	opener ports.ResourceOpenerPort
	store  ports.MapStorePort
}

func NewSnapshotProvider(opener ports.ResourceOpenerPort, store ports.MapStorePort) SnapshotProvider {
	return SnapshotProvider{opener: opener, store: store}
}

func (p SnapshotProvider) Name() types.ProviderName {
	return types.ProviderSnapshot
}

func (p SnapshotProvider) CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error) {
	resource, err := p.opener.Open(ctx, request.Root)
	if err != nil {
		return nil, err
	}
	data, err := readAll(resource)
	_ = resource.Close()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read snapshot " + request.Root.String()).
			WithCause(err)
	}
	snapshot, err := p.store.Decode(data)
	if err != nil {
		return nil, err
	}
	m, err := SnapshotToMap(snapshot)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Str("snapshot_root", snapshot.Root).
		Int("keys", m.Len()).
		Msg("loaded resolve map snapshot")
	return m, nil
}

// SnapshotToMap rebuilds a map from its snapshot, rejecting unparsable
// URIs and conflicting keys.
func SnapshotToMap(snapshot types.MapSnapshot) (*resolvemap.ResolveMap, error) {
	builder := resolvemap.NewBuilder()
	for _, entry := range snapshot.Entries {
		uri, err := types.ParseURI(entry.URI)
		if err != nil {
			return nil, invalidSnapshot(err)
		}
		if err := builder.Add(entry.Key, uri); err != nil {
			return nil, err
		}
	}
	return builder.Build(), nil
}

// MapToSnapshot captures m in canonical order.
func MapToSnapshot(m *resolvemap.ResolveMap) types.MapSnapshot {
	entries := m.Entries()
	snapshot := types.MapSnapshot{Entries: make([]types.SnapshotEntry, 0, len(entries))}
	for _, entry := range entries {
		snapshot.Entries = append(snapshot.Entries, types.SnapshotEntry{Key: entry.Key, URI: entry.URI.String()})
	}
	return snapshot
}

var _ ports.ResolveMapProviderPort = SnapshotProvider{}
