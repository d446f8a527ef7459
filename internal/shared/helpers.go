// Package shared provides small normalization helpers used by several
// resolvemap packages.
package shared

import "strings"

// NormalizeExtension lowercases a file extension and ensures it carries a
// leading dot. An empty value stays empty.
func NormalizeExtension(value string) string {
	ext := strings.ToLower(strings.TrimSpace(value))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// NormalizeMIME lowercases a MIME type and drops any parameters.
func NormalizeMIME(value string) string {
	mime, _, _ := strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}
