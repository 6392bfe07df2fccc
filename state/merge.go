package state

import (
	"reflect"
	"time"

	"github.com/voralis/stageflow/types"
)

// copyValue deep-copies the JSON-shaped values carried in a domain payload.
// Maps and slices are copied recursively; scalars and any other value kinds
// are passed through unchanged.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// copyPayload deep-copies a domain payload map. A nil payload copies to an
// empty map so snapshots are always safe to index.
func copyPayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = copyValue(v)
	}
	return out
}

// copyState deep-copies a full session snapshot.
func copyState(s *types.State) *types.State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Payload = copyPayload(s.Payload)
	return &cp
}

// mergePayload merges update into dst in place. The merge is key-wise: when
// both sides hold a map for the same key the maps are merged recursively,
// any other value kind (slices included) replaces the previous value
// wholesale. Merged-in values are copied so the store never aliases caller
// memory.
func mergePayload(dst, update map[string]any) {
	for k, v := range update {
		if uv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				mergePayload(dv, uv)
				continue
			}
		}
		dst[k] = copyValue(v)
	}
}

// diffPayload walks update recursively, comparing each leaf against the
// corresponding value in current, and appends one change record per leaf
// that differs. A path that traverses into a non-map value in current is
// treated as absent (previous == nil), never as an error.
func diffPayload(current, update map[string]any, prefix []string, now time.Time, source string, out []types.StateChange) []types.StateChange {
	for k, v := range update {
		path := append(append([]string{}, prefix...), k)
		prev, had := currentValue(current, k)
		if uv, ok := v.(map[string]any); ok {
			if pv, ok := prev.(map[string]any); ok {
				out = diffPayload(pv, uv, path, now, source, out)
				continue
			}
			// Map replacing a non-map: record leaves of the new map.
			out = diffPayload(nil, uv, path, now, source, out)
			continue
		}
		if had && reflect.DeepEqual(prev, v) {
			continue
		}
		out = append(out, types.StateChange{
			Path:      path,
			Previous:  copyValue(prev),
			New:       copyValue(v),
			Timestamp: now,
			Source:    source,
		})
	}
	return out
}

func currentValue(current map[string]any, key string) (any, bool) {
	if current == nil {
		return nil, false
	}
	v, ok := current[key]
	return v, ok
}
