package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"resolvemap/internal/keypath"
	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// Resolve looks a key up in the map of a package. A miss is reported in
// the result, not as an error.
func (s Service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	if strings.TrimSpace(req.Key) == "" {
		return ResolveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("key is required")
	}
	m, err := s.LoadResolveMap(ctx, req.Root)
	if err != nil {
		return ResolveResult{}, err
	}
	uri := m.ResolveKey(req.Key)
	fromFallback := false
	if uri.IsEmpty() && req.URIFallback {
		uri = resolvemap.ResolveKeyWithURIFallback(m, req.Key)
		fromFallback = !uri.IsEmpty()
	}
	return ResolveResult{
		Key:          req.Key,
		URI:          uri.String(),
		Found:        !uri.IsEmpty(),
		FromFallback: fromFallback,
	}, nil
}

func (s Service) Reverse(ctx context.Context, req ReverseRequest) (ReverseResult, error) {
	uri, err := types.ParseURI(strings.TrimSpace(req.URI))
	if err != nil {
		return ReverseResult{}, err
	}
	m, err := s.LoadResolveMap(ctx, req.Root)
	if err != nil {
		return ReverseResult{}, err
	}
	return ReverseResult{URI: uri.String(), Keys: m.ResolveURI(uri)}, nil
}

func (s Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if err := resolvemap.ValidateQuery(req.Query); err != nil {
		return SearchResult{}, err
	}
	m, err := s.LoadResolveMap(ctx, req.Root)
	if err != nil {
		return SearchResult{}, err
	}
	keys, err := m.Search(req.Project, req.Query)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Keys: keys, Joined: resolvemap.JoinSearchResult(keys)}, nil
}

// Anchor applies the key path algebra without touching any package.
func (s Service) Anchor(req AnchorRequest) (AnchorResult, error) {
	switch req.Mode {
	case AnchorRelative, "":
		return AnchorResult{Key: keypath.AnchorRelativeKey(req.Anchor, req.Key)}, nil
	case AnchorEmbedded:
		return AnchorResult{Key: keypath.AnchorEmbeddedKey(req.Anchor, req.Key)}, nil
	case AnchorReplace:
		return AnchorResult{Key: keypath.ReplaceLastKeySegment(req.Anchor, req.Key)}, nil
	default:
		return AnchorResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown anchor mode %q", req.Mode))
	}
}
