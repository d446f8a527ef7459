package resolvemap

import (
	"fmt"
	"strings"

	"cogentcore.org/core/base/ordmap"
	"github.com/ZanzyTHEbar/errbuilder-go"

	"resolvemap/internal/types"
)

// Builder accumulates entries for a new ResolveMap. Both directions are
// updated together on every Add. A Builder is not safe for concurrent use.
type Builder struct {
	forward *ordmap.Map[string, types.URI]
	reverse map[string][]string
}

func NewBuilder() *Builder {
	return &Builder{
		forward: ordmap.New[string, types.URI](),
		reverse: map[string][]string{},
	}
}

// Add registers key → uri. Re-adding an identical pair is a no-op; adding
// a known key with a different URI fails and leaves the builder unchanged.
func (b *Builder) Add(key string, uri types.URI) error {
	if strings.TrimSpace(key) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("resolve map key is empty")
	}
	if uri.IsEmpty() {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("empty uri for key %s", key))
	}
	if existing, ok := b.forward.ValueByKeyTry(key); ok {
		if existing.Equal(uri) {
			return nil
		}
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("conflicting uri for key %s: %s != %s", key, existing, uri))
	}
	b.forward.Add(key, uri)
	b.reverse[uri.String()] = append(b.reverse[uri.String()], key)
	return nil
}

// Merge adds every entry of m in its canonical order.
func (b *Builder) Merge(m *ResolveMap) error {
	for _, entry := range m.Entries() {
		if err := b.Add(entry.Key, entry.URI); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) Len() int {
	return b.forward.Len()
}

// Build publishes the accumulated entries. The builder starts over empty
// so later Adds never reach the published map.
func (b *Builder) Build() *ResolveMap {
	published := &ResolveMap{forward: b.forward, reverse: b.reverse}
	b.forward = ordmap.New[string, types.URI]()
	b.reverse = map[string][]string{}
	return published
}
