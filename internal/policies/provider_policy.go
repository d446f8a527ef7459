package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"resolvemap/internal/shared"
	"resolvemap/internal/types"
)

type ProviderPolicy struct {
	Rules       []types.ProviderRule
	exactExt    map[string]int
	prefixExt   []prefixPattern
	exactMIME   map[string]int
	prefixMIME  []prefixPattern
	wildcardAny int
}

func NewProviderPolicy(rules []types.ProviderRule) ProviderPolicy {
	policy := ProviderPolicy{wildcardAny: -1}
	for _, rule := range rules {
		if strings.TrimSpace(string(rule.Provider)) == "" {
			continue
		}
		policy.Rules = append(policy.Rules, rule)
	}
	if len(policy.Rules) == 0 {
		policy.Rules = types.DefaultProviderRules()
	}
	policy.compile()
	return policy
}

// Select returns the first rule matching the extension or MIME type of a
// resource. Either input may be empty.
func (p ProviderPolicy) Select(extension string, mimeType string) (types.ProviderSelection, error) {
	ext := shared.NormalizeExtension(extension)
	mime := shared.NormalizeMIME(mimeType)
	best := -1
	if ext != "" {
		if idx, found := p.exactExt[ext]; found {
			best = minIndex(best, idx)
		}
		for _, entry := range p.prefixExt {
			if strings.HasPrefix(ext, entry.prefix) {
				best = minIndex(best, entry.ruleIndex)
			}
		}
	}
	if mime != "" {
		if idx, found := p.exactMIME[mime]; found {
			best = minIndex(best, idx)
		}
		for _, entry := range p.prefixMIME {
			if strings.HasPrefix(mime, entry.prefix) {
				best = minIndex(best, entry.ruleIndex)
			}
		}
	}
	if p.wildcardAny >= 0 {
		best = minIndex(best, p.wildcardAny)
	}
	if best >= 0 && best < len(p.Rules) {
		rule := p.Rules[best]
		return types.ProviderSelection{Provider: rule.Provider, Nested: rule.Nested}, nil
	}
	return types.ProviderSelection{}, errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("no provider matches ext=%q mime=%q", ext, mime))
}

type prefixPattern struct {
	prefix    string
	ruleIndex int
}

type patternTarget int

const (
	targetExt patternTarget = iota
	targetMIME
)

type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternWildcard
	patternInvalid
)

type parsedPattern struct {
	target patternTarget
	kind   patternKind
	value  string
}

func (p *ProviderPolicy) compile() {
	p.exactExt = map[string]int{}
	p.prefixExt = nil
	p.exactMIME = map[string]int{}
	p.prefixMIME = nil
	p.wildcardAny = -1
	for idx, rule := range p.Rules {
		for _, pattern := range rule.Matches {
			parsed, ok := parsePattern(pattern)
			if !ok {
				continue
			}
			switch {
			case parsed.kind == patternWildcard:
				if p.wildcardAny < 0 {
					p.wildcardAny = idx
				}
			case parsed.target == targetExt && parsed.kind == patternExact:
				storeExact(p.exactExt, parsed.value, idx)
			case parsed.target == targetExt:
				p.prefixExt = append(p.prefixExt, prefixPattern{prefix: parsed.value, ruleIndex: idx})
			case parsed.target == targetMIME && parsed.kind == patternExact:
				storeExact(p.exactMIME, parsed.value, idx)
			case parsed.target == targetMIME:
				p.prefixMIME = append(p.prefixMIME, prefixPattern{prefix: parsed.value, ruleIndex: idx})
			}
		}
	}
}

func storeExact(table map[string]int, value string, index int) {
	if _, ok := table[value]; !ok {
		table[value] = index
	}
}

func parsePattern(pattern string) (parsedPattern, bool) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return parsedPattern{kind: patternInvalid}, false
	}
	if trimmed == "*" {
		return parsedPattern{kind: patternWildcard}, true
	}
	target, value, found := strings.Cut(trimmed, ":")
	if !found {
		return parsedPattern{kind: patternInvalid}, false
	}
	var parsed parsedPattern
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "ext":
		parsed.target = targetExt
	case "mime":
		parsed.target = targetMIME
	default:
		return parsedPattern{kind: patternInvalid}, false
	}
	name, kind := parseValuePattern(value)
	if kind == patternInvalid {
		return parsedPattern{kind: patternInvalid}, false
	}
	if parsed.target == targetExt {
		name = shared.NormalizeExtension(name)
	} else {
		name = shared.NormalizeMIME(name)
	}
	parsed.kind = kind
	parsed.value = name
	return parsed, true
}

func parseValuePattern(value string) (string, patternKind) {
	pattern := strings.TrimSpace(value)
	if pattern == "" {
		return "", patternInvalid
	}
	if pattern == "*" {
		return "", patternWildcard
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*"), patternPrefix
	}
	return pattern, patternExact
}

func minIndex(current int, candidate int) int {
	if candidate < 0 {
		return current
	}
	if current < 0 || candidate < current {
		return candidate
	}
	return current
}
