// Package observability provides metrics and their attribute helpers.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOutcome   = "outcome"
	attrCancelled = "cancelled"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with IDs to reduce cardinality
	// /api/processes/abc123 -> /api/processes/{id}
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func processStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrStatus, status)
}

func outcomeAttr(reachable bool) attribute.KeyValue {
	if reachable {
		return attribute.String(attrOutcome, "working")
	}
	return attribute.String(attrOutcome, "failed")
}

func cancelledAttr(cancelled bool) attribute.KeyValue {
	return attribute.Bool(attrCancelled, cancelled)
}

// idRoutes are path prefixes followed by a single process id segment.
var idRoutes = []string{
	"/api/processes/",
	"/api/stop/",
	"/api/status/",
}

// normalizePath replaces dynamic path segments with placeholders.
func normalizePath(path string) string {
	for _, prefix := range idRoutes {
		if len(path) > len(prefix) && strings.HasPrefix(path, prefix) {
			return prefix + "{id}"
		}
	}
	return path
}
