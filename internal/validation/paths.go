package validation

import (
	"strconv"
)

// extractPaths returns every property and array-element path of a decoded
// JSON value. Array elements are written as name[] or, when preserveIndices
// is set, name[N]. Nested arrays yield name[][] and so on.
func extractPaths(v any, preserveIndices bool) map[string]struct{} {
	paths := map[string]struct{}{}
	walkPaths(v, "", preserveIndices, paths)
	return paths
}

func walkPaths(v any, prefix string, preserveIndices bool, paths map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			paths[p] = struct{}{}
			walkPaths(child, p, preserveIndices, paths)
		}
	case []any:
		for i, child := range t {
			p := prefix + "[]"
			if preserveIndices {
				p = prefix + "[" + strconv.Itoa(i) + "]"
			}
			paths[p] = struct{}{}
			walkPaths(child, p, preserveIndices, paths)
		}
	}
}
