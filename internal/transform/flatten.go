package transform

import (
	"maps"
	"slices"
	"strconv"
)

// FlattenProperties flattens src into dot-joined keys and merges them into dst, which may be nil.
// Keys from src overwrite existing keys in dst. Arrays flatten by index and empty objects
// or arrays produce no key. Object keys are visited in sorted order, so when two paths
// flatten to the same key the result is always the same. A "resources" entry already in dst holding an empty array is
// removed as well.
func FlattenProperties(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}

	for _, k := range slices.Sorted(maps.Keys(src)) {
		flattenValue(dst, k, src[k])
	}

	if isEmptySequence(dst["resources"]) {
		delete(dst, "resources")
	}

	return dst
}

func flattenValue(dst map[string]any, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return
		}
		for _, k := range slices.Sorted(maps.Keys(v)) {
			flattenValue(dst, key+"."+k, v[k])
		}
	case []any:
		if len(v) == 0 {
			return
		}
		for i, child := range v {
			flattenValue(dst, key+"."+strconv.Itoa(i), child)
		}
	default:
		dst[key] = v
	}
}

func isEmptySequence(v any) bool {
	switch s := v.(type) {
	case []any:
		return len(s) == 0
	case []string:
		return len(s) == 0
	default:
		return false
	}
}
