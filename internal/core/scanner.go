package core

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/keypath"
	"resolvemap/internal/ports"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// Scanner turns a root resource into a resolve map. It picks a provider
// for the root and, up to MaxDepth levels, scans embedded containers whose
// provider rule is marked nested, merging their keys into the result.
type Scanner struct {
	Opener    ports.ResourceOpenerPort
	Sniffer   ports.ContentSnifferPort
	Policy    ports.ProviderPolicyPort
	Providers map[types.ProviderName]ports.ResolveMapProviderPort
	MaxDepth  int
}

type ScanResult struct {
	Map      *resolvemap.ResolveMap
	Provider types.ProviderName
	// Nested counts the embedded containers that were scanned.
	Nested int
}

func NewScanner(opener ports.ResourceOpenerPort, sniffer ports.ContentSnifferPort, policy ports.ProviderPolicyPort, providers []ports.ResolveMapProviderPort, maxDepth int) Scanner {
	registry := make(map[types.ProviderName]ports.ResolveMapProviderPort, len(providers))
	for _, provider := range providers {
		registry[provider.Name()] = provider
	}
	return Scanner{
		Opener:    opener,
		Sniffer:   sniffer,
		Policy:    policy,
		Providers: registry,
		MaxDepth:  maxDepth,
	}
}

// Scan builds the complete map for request. Any failure, including one in
// a nested container, fails the whole scan.
func (s Scanner) Scan(ctx context.Context, request types.ScanRequest) (ScanResult, error) {
	if s.Opener == nil || s.Sniffer == nil || s.Policy == nil {
		return ScanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("scanner requires opener, sniffer and policy ports")
	}
	if request.Root.IsEmpty() {
		return ScanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("scan root is empty")
	}
	selection, err := s.Select(ctx, request.Root)
	if err != nil {
		return ScanResult{}, err
	}
	provider, err := s.provider(selection.Provider)
	if err != nil {
		return ScanResult{}, err
	}
	m, err := provider.CreateResolveMap(ctx, request)
	if err != nil {
		return ScanResult{}, err
	}
	result := ScanResult{Map: m, Provider: selection.Provider}
	if s.MaxDepth > 0 {
		builder := resolvemap.NewBuilder()
		if err := builder.Merge(m); err != nil {
			return ScanResult{}, err
		}
		nested, err := s.scanNested(ctx, m, 1, builder)
		if err != nil {
			return ScanResult{}, err
		}
		if nested > 0 {
			result.Map = builder.Build()
			result.Nested = nested
		}
	}
	log.Ctx(ctx).Debug().
		Str("root", request.Root.String()).
		Str("provider", string(result.Provider)).
		Int("keys", result.Map.Len()).
		Int("nested", result.Nested).
		Msg("scan completed")
	return result, nil
}

// Select chooses the provider for root from its extension and sniffed
// content. Directories have neither and fall through to wildcard rules.
func (s Scanner) Select(ctx context.Context, root types.URI) (types.ProviderSelection, error) {
	info, err := s.Opener.Stat(ctx, root)
	if err != nil {
		return types.ProviderSelection{}, err
	}
	var extension, mimeType string
	if info.Kind != types.ResourceKindDirectory {
		extension = keypath.Extension(root.Name())
		resource, err := s.Opener.Open(ctx, root)
		if err != nil {
			return types.ProviderSelection{}, err
		}
		mimeType, err = s.Sniffer.Sniff(resource)
		_ = resource.Close()
		if err != nil {
			return types.ProviderSelection{}, err
		}
	}
	return s.Policy.Select(extension, mimeType)
}

// scanNested selects nested providers by key extension only so that
// entries are not opened unless they are scanned.
func (s Scanner) scanNested(ctx context.Context, m *resolvemap.ResolveMap, depth int, builder *resolvemap.Builder) (int, error) {
	if depth > s.MaxDepth {
		return 0, nil
	}
	scanned := 0
	for _, entry := range m.Entries() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		selection, err := s.Policy.Select(keypath.Extension(entry.Key), "")
		if err != nil || !selection.Nested {
			continue
		}
		provider, err := s.provider(selection.Provider)
		if err != nil {
			return 0, err
		}
		child, err := provider.CreateResolveMap(ctx, types.ScanRequest{Root: entry.URI, ContainerKey: entry.Key})
		if err != nil {
			return 0, errbuilder.New().
				WithCode(errbuilder.CodeOf(err)).
				WithMsg(fmt.Sprintf("failed to scan embedded container %s", entry.Key)).
				WithCause(err)
		}
		if err := builder.Merge(child); err != nil {
			return 0, err
		}
		scanned++
		deeper, err := s.scanNested(ctx, child, depth+1, builder)
		if err != nil {
			return 0, err
		}
		scanned += deeper
	}
	return scanned, nil
}

func (s Scanner) provider(name types.ProviderName) (ports.ResolveMapProviderPort, error) {
	provider, ok := s.Providers[name]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("provider %s is not available", name))
	}
	return provider, nil
}
