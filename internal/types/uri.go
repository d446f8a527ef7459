package types

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// SelectorSeparator splits the outer container location of a composite
// URI from the selector addressing data inside it.
const SelectorSeparator = "!/"

// URI identifies a resolvable resource location. The zero value is the
// empty URI returned by lookups that did not resolve. URIs are immutable
// values and compare by their canonical string form.
type URI struct {
	raw    string
	scheme string
}

// EmptyURI is the sentinel for "not resolved".
var EmptyURI = URI{}

// ParseURI parses a percent-encoded URI string. A string without a valid
// scheme prefix is accepted as a scheme-less relative reference.
func ParseURI(value string) (URI, error) {
	if value == "" {
		return URI{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("uri is empty")
	}
	if err := validateEscapes(value); err != nil {
		return URI{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid uri %q", value)).
			WithCause(err)
	}
	return URI{raw: value, scheme: schemeOf(value)}, nil
}

// MustParseURI is ParseURI for literals known to be valid.
func MustParseURI(value string) URI {
	parsed, err := ParseURI(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

// FileURI builds a file: URI from an absolute, slash separated path.
func FileURI(path string) URI {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return URI{raw: "file:" + EscapePath(normalized), scheme: "file"}
}

// ComposeEntryURI addresses an entry of an archive-like container:
// <scheme>:<outer>!/<entry path>.
func ComposeEntryURI(scheme string, outer URI, entryPath string) URI {
	entry := EscapePath(strings.TrimLeft(strings.ReplaceAll(entryPath, "\\", "/"), "/"))
	return URI{
		raw:    scheme + ":" + outer.raw + SelectorSeparator + entry,
		scheme: scheme,
	}
}

// ComposeRangeURI addresses a byte range of a container:
// <scheme>:<outer>!/<offset>/<length>/<name>.
func ComposeRangeURI(scheme string, outer URI, offset int64, length int64, name string) URI {
	entry := EscapePath(strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/"))
	return URI{
		raw:    fmt.Sprintf("%s:%s%s%d/%d/%s", scheme, outer.raw, SelectorSeparator, offset, length, entry),
		scheme: scheme,
	}
}

// IsRangeScheme reports whether composite URIs of scheme carry an
// offset/length selector. All other composite schemes name archive
// entries.
func IsRangeScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case string(ProviderGLB), string(ProviderUSDZ):
		return true
	default:
		return false
	}
}

func (u URI) String() string {
	return u.raw
}

func (u URI) Scheme() string {
	return u.scheme
}

func (u URI) IsEmpty() bool {
	return u.raw == ""
}

func (u URI) Equal(other URI) bool {
	return u.raw == other.raw
}

// Payload is everything after "<scheme>:".
func (u URI) Payload() string {
	if u.scheme == "" {
		return u.raw
	}
	return u.raw[len(u.scheme)+1:]
}

// IsComposite reports whether the URI addresses data inside a container.
func (u URI) IsComposite() bool {
	return strings.LastIndex(u.Payload(), SelectorSeparator) >= 0
}

// Outer returns the container location of a composite URI. Nested
// composite URIs are unwrapped one level at a time.
func (u URI) Outer() (URI, bool) {
	payload := u.Payload()
	idx := strings.LastIndex(payload, SelectorSeparator)
	if idx < 0 {
		return URI{}, false
	}
	outer := payload[:idx]
	return URI{raw: outer, scheme: schemeOf(outer)}, true
}

// Selector returns the part after the last "!", including its leading
// slash.
func (u URI) Selector() string {
	payload := u.Payload()
	idx := strings.LastIndex(payload, SelectorSeparator)
	if idx < 0 {
		return ""
	}
	return payload[idx+1:]
}

// Range decodes an offset/length selector.
func (u URI) Range() (offset int64, length int64, name string, ok bool) {
	selector := strings.TrimPrefix(u.Selector(), "/")
	if selector == "" {
		return 0, 0, "", false
	}
	parts := strings.SplitN(selector, "/", 3)
	if len(parts) < 3 {
		return 0, 0, "", false
	}
	offset, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, "", false
	}
	length, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil || length < 0 {
		return 0, 0, "", false
	}
	return offset, length, unescape(parts[2]), true
}

// EntryPath returns the decoded internal archive path of a container-entry
// selector.
func (u URI) EntryPath() string {
	return unescape(strings.TrimPrefix(u.Selector(), "/"))
}

// Name returns the decoded last path segment the URI points at.
func (u URI) Name() string {
	if _, _, name, ok := u.Range(); ok {
		return lastSegment(name)
	}
	if u.IsComposite() {
		return lastSegment(u.EntryPath())
	}
	return lastSegment(unescape(u.Payload()))
}

// Path returns the decoded local path of a file: URI.
func (u URI) Path() string {
	if u.scheme != "file" {
		return ""
	}
	payload := u.Payload()
	if strings.HasPrefix(payload, "//") {
		rest := payload[2:]
		idx := strings.Index(rest, "/")
		if idx < 0 {
			return ""
		}
		payload = rest[idx:]
	}
	return unescape(payload)
}

func (u URI) MarshalText() ([]byte, error) {
	return []byte(u.raw), nil
}

func (u *URI) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*u = URI{}
		return nil
	}
	parsed, err := ParseURI(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// EscapePath percent-encodes the characters that would break the
// composite grammar or the percent-encoding itself.
func EscapePath(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch c {
		case '%', '!', ' ', '#', '?':
			fmt.Fprintf(&builder, "%%%02X", c)
		default:
			builder.WriteByte(c)
		}
	}
	return builder.String()
}

func schemeOf(value string) string {
	idx := strings.Index(value, ":")
	if idx <= 0 {
		return ""
	}
	candidate := value[:idx]
	for i, r := range candidate {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return ""
		}
	}
	return candidate
}

func validateEscapes(value string) error {
	for i := 0; i < len(value); i++ {
		if value[i] != '%' {
			continue
		}
		if i+2 >= len(value) || !isHex(value[i+1]) || !isHex(value[i+2]) {
			return fmt.Errorf("invalid percent escape at offset %d", i)
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unescape(value string) string {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

func lastSegment(value string) string {
	idx := strings.LastIndex(value, "/")
	if idx < 0 {
		return value
	}
	return value[idx+1:]
}
