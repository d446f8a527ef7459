package app

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/types"
)

// Watch invalidates the cached map of a root whenever its content digest
// changes, until ctx is done. Roots must be local paths.
func (s Service) Watch(ctx context.Context, req WatchRequest) error {
	if len(req.Roots) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one root is required")
	}
	logger := log.Ctx(ctx)

	var mu sync.Mutex
	digests := map[string]string{}
	paths := make([]string, 0, len(req.Roots))
	for _, root := range req.Roots {
		uri, err := rootURI(root)
		if err != nil {
			return err
		}
		if uri.Scheme() != "file" || uri.IsComposite() {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("only local package roots can be watched: " + root)
		}
		digest, err := s.Fingerprint.Fingerprint(ctx, uri)
		if err != nil {
			return err
		}
		digests[uri.String()] = digest
		paths = append(paths, uri.Path())
	}

	onChange := func(path string) {
		uri := types.FileURI(path)
		id := uri.String()
		digest, err := s.Fingerprint.Fingerprint(ctx, uri)

		mu.Lock()
		unchanged := err == nil && digests[id] == digest
		if err == nil {
			digests[id] = digest
		} else {
			delete(digests, id)
		}
		mu.Unlock()
		if unchanged {
			logger.Debug().Str("root", id).Msg("package content unchanged")
			return
		}

		s.Cache.Invalidate(id)
		event := WatchEvent{Root: id, Digest: digest, Err: err}
		if err == nil && req.Rebuild {
			m, buildErr := s.load(ctx, uri)
			if buildErr != nil {
				event.Err = buildErr
			} else {
				event.Keys = m.Len()
			}
		}
		if event.Err != nil {
			logger.Warn().Err(event.Err).Str("root", id).Msg("package reload failed")
		} else {
			logger.Info().Str("root", id).Str("digest", digest).Msg("package reloaded")
		}
		if req.OnReload != nil {
			req.OnReload(event)
		}
	}
	return s.Watcher.Watch(ctx, paths, onChange)
}
