package resolvemap

import (
	"strings"

	"resolvemap/internal/keypath"
)

// SearchResultSeparator joins the keys of a SearchKey result. A key that
// itself contains the separator or a backslash has them escaped with a
// backslash.
const SearchResultSeparator = ";"

var searchResultEscaper = strings.NewReplacer(`\`, `\\`, SearchResultSeparator, `\`+SearchResultSeparator)

// SearchKey evaluates query against the keys inside project and returns
// the matching keys in canonical order joined by SearchResultSeparator.
// project is a "/name" namespace; keys are matched relative to it, and an
// empty project searches every key. Zero matches yield "" and a nil
// error; a malformed query yields a CodeInvalidArgument error.
func (m *ResolveMap) SearchKey(project string, query string) (string, error) {
	matches, err := m.Search(project, query)
	if err != nil {
		return "", err
	}
	return JoinSearchResult(matches), nil
}

// Search is SearchKey without the serialization step.
func (m *ResolveMap) Search(project string, query string) ([]string, error) {
	node, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	matches := []string{}
	if m == nil {
		return matches, nil
	}
	for _, kv := range m.forward.Order {
		relative, ok := keypath.WithinProject(project, kv.Key)
		if !ok {
			continue
		}
		if node.match(candidate{key: relative, uri: kv.Value}) {
			matches = append(matches, kv.Key)
		}
	}
	return matches, nil
}

// JoinSearchResult serializes keys the way SearchKey does.
func JoinSearchResult(keys []string) string {
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = searchResultEscaper.Replace(key)
	}
	return strings.Join(escaped, SearchResultSeparator)
}

// ParseSearchResult splits a SearchKey result back into keys.
func ParseSearchResult(result string) []string {
	keys := []string{}
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			keys = append(keys, current.String())
			current.Reset()
		}
	}
	for i := 0; i < len(result); i++ {
		switch c := result[i]; {
		case c == '\\' && i+1 < len(result):
			i++
			current.WriteByte(result[i])
		case c == SearchResultSeparator[0]:
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return keys
}
