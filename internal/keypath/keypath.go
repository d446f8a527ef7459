// Package keypath implements the algebra of resolve map keys: '/'
// separated, case-sensitive logical paths such as
// "assets/elements/window.obj". All functions are pure and total; odd
// input degrades to a best-effort key instead of an error.
package keypath

import (
	"path"
	"strings"
)

const Separator = "/"

// Normalize converts backslashes to forward slashes.
func Normalize(key string) string {
	return strings.ReplaceAll(key, "\\", Separator)
}

// Segments splits a key into its non-empty segments.
func Segments(key string) []string {
	parts := strings.Split(key, Separator)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// Dir returns everything before the last separator, or "" for a
// single-segment key.
func Dir(key string) string {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

// Base returns the last segment of key.
func Base(key string) string {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

// Extension returns the lower-case extension of the last segment
// including its dot, or "".
func Extension(key string) string {
	return strings.ToLower(path.Ext(Base(key)))
}

// IsAbsolute reports whether key is anchored at the root.
func IsAbsolute(key string) bool {
	return strings.HasPrefix(key, Separator)
}

// AnchorRelativeKey resolves relativeKey against the directory of
// anchorKey. ".." pops a directory segment and "." is ignored, wherever
// they appear. Popping past the root of a relative anchor produces a key
// anchored at the root ("/..."). An absolute relativeKey is returned
// normalized and unanchored. Backslashes in both inputs become slashes.
func AnchorRelativeKey(anchorKey string, relativeKey string) string {
	anchor := Normalize(anchorKey)
	relative := Normalize(relativeKey)
	if IsAbsolute(relative) {
		return join(Segments(relative), true)
	}

	absolute := IsAbsolute(anchor)
	stack := Segments(Dir(anchor))
	for _, segment := range Segments(relative) {
		switch segment {
		case ".":
		case "..":
			if len(stack) == 0 {
				absolute = true
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, segment)
		}
	}
	return join(stack, absolute)
}

// AnchorEmbeddedKey composes the key of a resource embedded in the
// container identified by containerKey. The container key becomes a
// directory-like prefix, so every embedded key of one container shares
// "<containerKey>/" and SplitEmbeddedKey recovers embeddedKey. Providers
// use this function for every key they register.
func AnchorEmbeddedKey(containerKey string, embeddedKey string) string {
	container := strings.TrimRight(Normalize(containerKey), Separator)
	embedded := cleanEmbedded(embeddedKey)
	if container == "" {
		return embedded
	}
	if embedded == "" {
		return container
	}
	return container + Separator + embedded
}

// SplitEmbeddedKey is the inverse of AnchorEmbeddedKey for a known
// container key.
func SplitEmbeddedKey(containerKey string, key string) (string, bool) {
	container := strings.TrimRight(Normalize(containerKey), Separator)
	if container == "" {
		return key, key != ""
	}
	prefix := container + Separator
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// ReplaceLastKeySegment replaces the segment after the last '/' of key.
//
// Deprecated: use AnchorRelativeKey, which also understands "." and "..".
// This function does plain segment replacement only.
func ReplaceLastKeySegment(key string, newSegment string) string {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return newSegment
	}
	return key[:idx+1] + newSegment
}

// WithinProject reports whether key lies in the project namespace and
// returns the key relative to it. An empty project contains every key.
func WithinProject(project string, key string) (string, bool) {
	trimmed := strings.Trim(Normalize(project), Separator)
	if trimmed == "" {
		return key, true
	}
	prefix := Separator + trimmed + Separator
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

func cleanEmbedded(key string) string {
	segments := Segments(Normalize(key))
	kept := segments[:0]
	for _, segment := range segments {
		if segment == "." {
			continue
		}
		kept = append(kept, segment)
	}
	return strings.Join(kept, Separator)
}

func join(segments []string, absolute bool) string {
	joined := strings.Join(segments, Separator)
	if absolute {
		return Separator + joined
	}
	return joined
}
