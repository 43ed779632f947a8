package httpmetrics

import (
	"strings"

	"github.com/google/uuid"
)

// routedPrefixes are the paths the service answers. Anything else is counted
// under a single label so scanners cannot blow up metric cardinality.
var routedPrefixes = []string{"/api/v1/", "/health", "/metrics"}

const unmatchedPath = "/{unmatched}"

// NormalizePath collapses ids so metric labels stay bounded.
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	if !routed(path) {
		return unmatchedPath
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := uuid.Parse(part); err == nil && len(part) == 36 {
			parts[i] = "{id}"
		} else if isNumeric(part) {
			parts[i] = "{param}"
		}
	}

	return strings.Join(parts, "/")
}

func routed(path string) bool {
	for _, prefix := range routedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
