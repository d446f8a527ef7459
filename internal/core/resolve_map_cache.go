package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"resolvemap/internal/resolvemap"
)

// BuildFunc produces the map for one package.
type BuildFunc func(ctx context.Context) (*resolvemap.ResolveMap, error)

// ResolveMapCache shares built resolve maps by package identity.
//
// At most one build per identity runs at a time; concurrent Get calls for
// the same identity wait for it and receive the same map. Every identity
// has a generation that Invalidate increments. A build publishes its
// result only if the generation it started under is still current, so a
// map built before an invalidation is never served after it.
type ResolveMapCache struct {
	mu          sync.Mutex
	entries     map[string]*resolvemap.ResolveMap
	generations map[string]uint64
	inflight    map[string]*inflightBuild
}

type inflightBuild struct {
	generation uint64
	done       chan struct{}
	result     *resolvemap.ResolveMap
	err        error
}

func NewResolveMapCache() *ResolveMapCache {
	return &ResolveMapCache{
		entries:     map[string]*resolvemap.ResolveMap{},
		generations: map[string]uint64{},
		inflight:    map[string]*inflightBuild{},
	}
}

// Get returns the cached map for id, joining or starting a build when
// there is none. The build runs to completion even if ctx is cancelled;
// only this caller's wait is abandoned. Failed builds are not cached.
func (c *ResolveMapCache) Get(ctx context.Context, id string, build BuildFunc) (*resolvemap.ResolveMap, error) {
	if id == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package identity is empty")
	}
	logger := log.Ctx(ctx)

	c.mu.Lock()
	if m, ok := c.entries[id]; ok {
		c.mu.Unlock()
		logger.Debug().Str("package", id).Msg("resolve map cache hit")
		return m, nil
	}
	generation := c.generations[id]
	call, joined := c.inflight[id]
	if !joined || call.generation != generation {
		call = &inflightBuild{generation: generation, done: make(chan struct{})}
		c.inflight[id] = call
		joined = false
		go c.run(context.WithoutCancel(ctx), id, call, build)
	}
	c.mu.Unlock()

	if joined {
		logger.Debug().Str("package", id).Uint64("generation", generation).Msg("joined in-flight resolve map build")
	} else {
		logger.Debug().Str("package", id).Uint64("generation", generation).Msg("resolve map cache miss")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
	}
	return call.result, call.err
}

func (c *ResolveMapCache) run(ctx context.Context, id string, call *inflightBuild, build BuildFunc) {
	m, err := safeBuild(ctx, build)
	if err == nil && m == nil {
		m = resolvemap.Empty()
	}

	c.mu.Lock()
	call.result, call.err = m, err
	if c.inflight[id] == call {
		delete(c.inflight, id)
	}
	current := c.generations[id] == call.generation
	if err == nil && current {
		c.entries[id] = m
	}
	c.mu.Unlock()
	close(call.done)

	if err == nil && !current {
		log.Ctx(ctx).Debug().
			Str("package", id).
			Uint64("generation", call.generation).
			Msg("discarded resolve map built before invalidation")
	}
}

func safeBuild(ctx context.Context, build BuildFunc) (m *resolvemap.ResolveMap, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m = nil
			err = errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("resolve map build panicked: %v", recovered))
		}
	}()
	return build(ctx)
}

// Invalidate drops the map of id. A build in flight for id keeps running
// for the callers already waiting on it, but its result is not cached and
// the next Get starts a fresh build.
func (c *ResolveMapCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.generations[id]++
	c.mu.Unlock()
}

// InvalidateAll invalidates every cached and in-flight identity.
func (c *ResolveMapCache) InvalidateAll() {
	c.mu.Lock()
	for id := range c.entries {
		c.generations[id]++
	}
	for id := range c.inflight {
		if _, cached := c.entries[id]; !cached {
			c.generations[id]++
		}
	}
	c.entries = map[string]*resolvemap.ResolveMap{}
	c.mu.Unlock()
}

// Generation returns the invalidation count of id.
func (c *ResolveMapCache) Generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id]
}

// Len returns the number of cached maps.
func (c *ResolveMapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether a map for id is cached.
func (c *ResolveMapCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}
