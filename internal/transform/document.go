package transform

import (
	"strings"
)

// deepCopy clones a JSON-like document. Objects and arrays are copied
// recursively; scalars (and any non-JSON value smuggled into the tree)
// are passed through as-is, matching the engine's no-coercion rule for
// numbers and other leaf values.
func deepCopy(doc any) any {
	switch v := doc.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = deepCopy(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = deepCopy(value)
		}
		return out
	default:
		return v
	}
}

// splitPath splits a validated dot-path into segments.
func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// lookup walks the document along the path. The second return reports
// whether the full path exists; navigation stops at any non-object.
func lookup(doc any, segments []string) (any, bool) {
	current := doc
	for _, segment := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, found := obj[segment]
		if !found {
			return nil, false
		}
		current = value
	}
	return current, true
}

// ensureParent walks to the parent object of the path's leaf, creating
// intermediate objects as needed. A non-object intermediate is replaced
// by a fresh object, mirroring how the write operations define "create
// intermediate containers". Returns the parent and the leaf key.
func ensureParent(root map[string]any, segments []string) (map[string]any, string) {
	parent := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := parent[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[segment] = child
		}
		parent = child
	}
	return parent, segments[len(segments)-1]
}

// parentOf walks to the parent object of the path's leaf without
// creating anything. The second return reports whether the parent chain
// exists and is all objects.
func parentOf(root map[string]any, segments []string) (map[string]any, string, bool) {
	parent := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := parent[segment].(map[string]any)
		if !ok {
			return nil, "", false
		}
		parent = child
	}
	return parent, segments[len(segments)-1], true
}
