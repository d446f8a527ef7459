package resolvemap

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gobwas/glob"
	"github.com/h2non/filetype"

	"resolvemap/internal/keypath"
	"resolvemap/internal/types"
)

// Query grammar:
//
//	query   := orExpr
//	orExpr  := andExpr { "||" andExpr }
//	andExpr := unary { ["&&"] unary }      whitespace is an implicit AND
//	unary   := "!" unary | "(" orExpr ")" | atom
//	atom    := "/" regex "/"                RE2, unanchored, "\/" for a slash
//	         | prop ("=" | "!=") value      value is a glob
//	         | '"' glob '"'
//	         | glob                         '*' stays in a segment, '**' crosses
//
// Properties: ext, name, dir, scheme, type (MIME type guessed from the
// extension) and embedded (true|false).

type candidate struct {
	key string
	uri types.URI
}

type queryNode interface {
	match(c candidate) bool
}

type andNode []queryNode

func (n andNode) match(c candidate) bool {
	for _, child := range n {
		if !child.match(c) {
			return false
		}
	}
	return true
}

type orNode []queryNode

func (n orNode) match(c candidate) bool {
	for _, child := range n {
		if child.match(c) {
			return true
		}
	}
	return false
}

type notNode struct {
	child queryNode
}

func (n notNode) match(c candidate) bool {
	return !n.child.match(c)
}

type globNode struct {
	pattern glob.Glob
}

func (n globNode) match(c candidate) bool {
	return n.pattern.Match(c.key)
}

type regexNode struct {
	pattern *regexp.Regexp
}

func (n regexNode) match(c candidate) bool {
	return n.pattern.MatchString(c.key)
}

type propNode struct {
	property string
	negate   bool
	value    glob.Glob
}

func (n propNode) match(c candidate) bool {
	matched := n.value.Match(propertyValue(n.property, c))
	if n.negate {
		return !matched
	}
	return matched
}

var knownProperties = map[string]struct{}{
	"ext":      {},
	"name":     {},
	"dir":      {},
	"scheme":   {},
	"type":     {},
	"embedded": {},
}

func propertyValue(property string, c candidate) string {
	switch property {
	case "ext":
		return strings.TrimPrefix(keypath.Extension(c.key), ".")
	case "name":
		return keypath.Base(c.key)
	case "dir":
		return keypath.Dir(c.key)
	case "scheme":
		return c.uri.Scheme()
	case "type":
		return filetype.GetType(strings.TrimPrefix(keypath.Extension(c.key), ".")).MIME.Value
	case "embedded":
		if c.uri.IsComposite() {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

type tokenKind int

const (
	tokenAtom tokenKind = iota
	tokenAnd
	tokenOr
	tokenNot
	tokenOpen
	tokenClose
)

type token struct {
	kind tokenKind
	node queryNode
	text string
}

// ValidateQuery reports whether query compiles.
func ValidateQuery(query string) error {
	_, err := parseQuery(query)
	return err
}

// parseQuery compiles a search query. Syntax errors carry
// errbuilder.CodeInvalidArgument.
func parseQuery(query string) (queryNode, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, malformedQuery(query, err)
	}
	if len(tokens) == 0 {
		return nil, malformedQuery(query, fmt.Errorf("empty query"))
	}
	parser := &queryParser{tokens: tokens}
	node, err := parser.parseOr()
	if err != nil {
		return nil, malformedQuery(query, err)
	}
	if parser.pos != len(parser.tokens) {
		return nil, malformedQuery(query, fmt.Errorf("unexpected %q", parser.tokens[parser.pos].text))
	}
	return node, nil
}

func malformedQuery(query string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("malformed search query %q", query)).
		WithCause(cause)
}

type queryParser struct {
	tokens []token
	pos    int
}

func (p *queryParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *queryParser) parseOr() (queryNode, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := orNode{first}
	for {
		next, ok := p.peek()
		if !ok || next.kind != tokenOr {
			break
		}
		p.pos++
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return children, nil
}

func (p *queryParser) parseAnd() (queryNode, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := andNode{first}
	for {
		next, ok := p.peek()
		if !ok {
			break
		}
		if next.kind == tokenAnd {
			p.pos++
		} else if next.kind != tokenAtom && next.kind != tokenNot && next.kind != tokenOpen {
			break
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return children, nil
}

func (p *queryParser) parseUnary() (queryNode, error) {
	next, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of query")
	}
	switch next.kind {
	case tokenNot:
		p.pos++
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	case tokenOpen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokenClose {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case tokenAtom:
		p.pos++
		return next.node, nil
	default:
		return nil, fmt.Errorf("unexpected %q", next.text)
	}
}

func tokenize(query string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(query[i:], "||"):
			tokens = append(tokens, token{kind: tokenOr, text: "||"})
			i += 2
		case strings.HasPrefix(query[i:], "&&"):
			tokens = append(tokens, token{kind: tokenAnd, text: "&&"})
			i += 2
		case c == '!':
			tokens = append(tokens, token{kind: tokenNot, text: "!"})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenOpen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenClose, text: ")"})
			i++
		case c == '/':
			body, next, err := delimited(query, i, '/')
			if err != nil {
				return nil, err
			}
			pattern, err := regexp.Compile(strings.ReplaceAll(body, `\/`, "/"))
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenAtom, node: regexNode{pattern: pattern}, text: query[i:next]})
			i = next
		case c == '"':
			body, next, err := delimited(query, i, '"')
			if err != nil {
				return nil, err
			}
			node, err := compileGlob(strings.ReplaceAll(body, `\"`, `"`))
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenAtom, node: node, text: query[i:next]})
			i = next
		default:
			word, next := bareWord(query, i)
			node, err := compileWord(word)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenAtom, node: node, text: word})
			i = next
		}
	}
	return tokens, nil
}

// delimited returns the body between query[start] and the next unescaped
// occurrence of delimiter, and the index after the closing delimiter.
func delimited(query string, start int, delimiter byte) (string, int, error) {
	for j := start + 1; j < len(query); j++ {
		if query[j] == '\\' {
			j++
			continue
		}
		if query[j] == delimiter {
			return query[start+1 : j], j + 1, nil
		}
	}
	return "", 0, fmt.Errorf("unterminated %q at offset %d", string(delimiter), start)
}

func bareWord(query string, start int) (string, int) {
	j := start
	for j < len(query) {
		c := query[j]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ')' {
			break
		}
		if strings.HasPrefix(query[j:], "||") || strings.HasPrefix(query[j:], "&&") {
			break
		}
		j++
	}
	return query[start:j], j
}

func compileWord(word string) (queryNode, error) {
	if idx := strings.Index(word, "="); idx > 0 {
		name := word[:idx]
		negate := false
		if strings.HasSuffix(name, "!") {
			negate = true
			name = strings.TrimSuffix(name, "!")
		}
		if isIdentifier(name) {
			return compileProperty(name, negate, word[idx+1:])
		}
	}
	return compileGlob(word)
}

func compileProperty(name string, negate bool, value string) (queryNode, error) {
	property := strings.ToLower(name)
	if _, ok := knownProperties[property]; !ok {
		return nil, fmt.Errorf("unknown property %q", name)
	}
	if property == "ext" {
		value = strings.TrimPrefix(value, ".")
	}
	var separators []rune
	if property == "dir" || property == "type" {
		separators = []rune{'/'}
	}
	pattern, err := glob.Compile(value, separators...)
	if err != nil {
		return nil, err
	}
	return propNode{property: property, negate: negate, value: pattern}, nil
}

func compileGlob(pattern string) (queryNode, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	compiled, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	return globNode{pattern: compiled}, nil
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_') {
			return false
		}
	}
	return true
}
