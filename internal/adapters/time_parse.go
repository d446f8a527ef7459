package adapters

import (
	"strings"
	"time"
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCreatedAt(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// normalizeCreatedAt rewrites a snapshot timestamp as RFC3339 UTC.
// Values that do not parse are kept verbatim.
func normalizeCreatedAt(value string) string {
	parsed, ok := parseCreatedAt(value)
	if !ok {
		return strings.TrimSpace(value)
	}
	return parsed.Format(time.RFC3339)
}
