// Package resolvemap holds the bidirectional key ↔ URI association built
// once per package and then shared read-only between any number of
// goroutines.
package resolvemap

import (
	"strings"

	"cogentcore.org/core/base/ordmap"

	"resolvemap/internal/types"
)

// RuleFileSuffix marks the compiled rule file entry of a rule package.
const RuleFileSuffix = ".cgb"

// ResolveMap maps logical keys to URIs and back. A ResolveMap is
// immutable: every method is safe for concurrent use without locking.
// Keys keep the order in which they were added.
type ResolveMap struct {
	forward *ordmap.Map[string, types.URI]
	reverse map[string][]string
}

// Empty returns a map without keys.
func Empty() *ResolveMap {
	return &ResolveMap{
		forward: ordmap.New[string, types.URI](),
		reverse: map[string][]string{},
	}
}

// FromEntries builds a map from entries in order.
func FromEntries(entries []types.Entry) (*ResolveMap, error) {
	builder := NewBuilder()
	for _, entry := range entries {
		if err := builder.Add(entry.Key, entry.URI); err != nil {
			return nil, err
		}
	}
	return builder.Build(), nil
}

// ResolveKey returns the URI registered for key, or types.EmptyURI.
func (m *ResolveMap) ResolveKey(key string) types.URI {
	if m == nil {
		return types.EmptyURI
	}
	uri, ok := m.forward.ValueByKeyTry(key)
	if !ok {
		return types.EmptyURI
	}
	return uri
}

// ResolveURI returns every key whose URI equals uri. The result is a
// fresh slice in canonical order and may be empty.
func (m *ResolveMap) ResolveURI(uri types.URI) []string {
	if m == nil || uri.IsEmpty() {
		return []string{}
	}
	keys := m.reverse[uri.String()]
	return append([]string{}, keys...)
}

// GetString returns the URI string for key, or "".
func (m *ResolveMap) GetString(key string) string {
	return m.ResolveKey(key).String()
}

func (m *ResolveMap) Contains(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.forward.IndexByKeyTry(key)
	return ok
}

func (m *ResolveMap) Len() int {
	if m == nil {
		return 0
	}
	return m.forward.Len()
}

// Keys returns all keys in canonical order.
func (m *ResolveMap) Keys() []string {
	if m == nil {
		return []string{}
	}
	return m.forward.Keys()
}

// Entries returns all associations in canonical order.
func (m *ResolveMap) Entries() []types.Entry {
	if m == nil {
		return []types.Entry{}
	}
	entries := make([]types.Entry, 0, m.forward.Len())
	for _, kv := range m.forward.Order {
		entries = append(entries, types.Entry{Key: kv.Key, URI: kv.Value})
	}
	return entries
}

// RuleFileEntry returns the first key naming a compiled rule file, or ""
// when the map holds none.
func RuleFileEntry(m *ResolveMap) string {
	for _, key := range m.Keys() {
		if strings.HasSuffix(key, RuleFileSuffix) {
			return key
		}
	}
	return ""
}

// ResolveKeyWithURIFallback resolves key in m and, when it is not
// registered, interprets key itself as a percent-encoded URI. The key is
// not encoded here. An unparsable fallback yields types.EmptyURI.
func ResolveKeyWithURIFallback(m *ResolveMap, key string) types.URI {
	if uri := m.ResolveKey(key); !uri.IsEmpty() {
		return uri
	}
	uri, err := types.ParseURI(key)
	if err != nil {
		return types.EmptyURI
	}
	return uri
}
