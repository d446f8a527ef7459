package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

func (s Service) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	root, err := rootURI(req.Root)
	if err != nil {
		return ScanResult{}, err
	}
	defaultKey := s.containerKey(root)
	containerKey := strings.TrimSpace(req.ContainerKey)
	if containerKey == "" {
		containerKey = defaultKey
	}

	var m *resolvemap.ResolveMap
	var provider types.ProviderName
	if containerKey == defaultKey {
		if req.Refresh {
			s.Cache.Invalidate(root.String())
		}
		m, provider, err = s.loadWithProvider(ctx, root)
		if err != nil {
			return ScanResult{}, err
		}
	} else {
		result, err := s.Scanner.Scan(ctx, types.ScanRequest{Root: root, ContainerKey: containerKey})
		if err != nil {
			return ScanResult{}, err
		}
		m, provider = result.Map, result.Provider
	}

	digest, err := s.Fingerprint.Fingerprint(ctx, root)
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{
		Root:         root.String(),
		ContainerKey: containerKey,
		Provider:     provider,
		Keys:         m.Len(),
		Digest:       digest,
		RuleFile:     resolvemap.RuleFileEntry(m),
		Entries:      m.Entries(),
	}, nil
}

// ScanAll scans roots concurrently. The first failure cancels the
// remaining scans and is returned.
func (s Service) ScanAll(ctx context.Context, req ScanAllRequest) (ScanAllResult, error) {
	if len(req.Roots) == 0 {
		return ScanAllResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one root is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := req.Workers
	if workerCount <= 0 {
		workerCount = s.Config.Workers
	}
	if workerCount <= 0 {
		workerCount = defaultWorkers
	}
	if len(req.Roots) < workerCount {
		workerCount = len(req.Roots)
	}

	results := make([]ScanResult, len(req.Roots))
	var errMu sync.Mutex
	var firstErr error
	sem := make(chan struct{}, workerCount)
	var wg sync.WaitGroup
	for index, root := range req.Roots {
		index, root := index, root
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			result, err := s.Scan(ctx, ScanRequest{Root: root, Refresh: req.Refresh})
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				errMu.Unlock()
				return
			}
			results[index] = result
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return ScanAllResult{}, firstErr
	}
	return ScanAllResult{Results: results}, nil
}

// LoadResolveMap returns the shared map of a package root, scanning it on
// first use.
func (s Service) LoadResolveMap(ctx context.Context, root string) (*resolvemap.ResolveMap, error) {
	uri, err := rootURI(root)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, uri)
}

// Evict drops the cached map of root. The next lookup rescans it.
func (s Service) Evict(root string) error {
	uri, err := rootURI(root)
	if err != nil {
		return err
	}
	s.Cache.Invalidate(uri.String())
	return nil
}

func (s Service) EvictAll() {
	s.Cache.InvalidateAll()
}

func (s Service) load(ctx context.Context, root types.URI) (*resolvemap.ResolveMap, error) {
	return s.Cache.Get(ctx, root.String(), func(ctx context.Context) (*resolvemap.ResolveMap, error) {
		result, err := s.Scanner.Scan(ctx, types.ScanRequest{Root: root, ContainerKey: s.containerKey(root)})
		if err != nil {
			return nil, err
		}
		if s.scanned != nil {
			s.scanned.set(root.String(), result.Provider)
		}
		log.Ctx(ctx).Info().
			Str("root", root.String()).
			Str("provider", string(result.Provider)).
			Int("keys", result.Map.Len()).
			Msg("package scanned")
		return result.Map, nil
	})
}

// loadWithProvider is load plus the provider that built the map. Maps
// cached by a service without a provider record fall back to selection.
func (s Service) loadWithProvider(ctx context.Context, root types.URI) (*resolvemap.ResolveMap, types.ProviderName, error) {
	m, err := s.load(ctx, root)
	if err != nil {
		return nil, "", err
	}
	if s.scanned != nil {
		if provider, ok := s.scanned.get(root.String()); ok {
			return m, provider, nil
		}
	}
	selection, err := s.Scanner.Select(ctx, root)
	if err != nil {
		return nil, "", err
	}
	return m, selection.Provider, nil
}

// containerKey anchors the root's file name below the configured prefix.
func (s Service) containerKey(root types.URI) string {
	return keypath.AnchorEmbeddedKey(s.Config.KeyPrefix, root.Name())
}

// rootURI accepts a URI with a scheme of two or more characters, and
// treats anything else as a local path.
func rootURI(value string) (types.URI, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return types.EmptyURI, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package root is required")
	}
	if uri, err := types.ParseURI(trimmed); err == nil && len(uri.Scheme()) > 1 {
		return uri, nil
	}
	absolute, err := filepath.Abs(trimmed)
	if err != nil {
		return types.EmptyURI, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid package root " + trimmed).
			WithCause(err)
	}
	return types.FileURI(filepath.ToSlash(absolute)), nil
}
