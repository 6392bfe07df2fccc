package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePayload_NestedSiblingsSurvive(t *testing.T) {
	t.Parallel()

	dst := map[string]any{
		"trip": map[string]any{
			"destination": "Kyoto",
			"hotel":       map[string]any{"name": "Grand", "stars": 4},
		},
	}
	mergePayload(dst, map[string]any{
		"trip": map[string]any{
			"hotel": map[string]any{"stars": 5},
		},
	})

	trip := dst["trip"].(map[string]any)
	hotel := trip["hotel"].(map[string]any)
	assert.Equal(t, "Kyoto", trip["destination"])
	assert.Equal(t, "Grand", hotel["name"])
	assert.Equal(t, 5, hotel["stars"])
}

func TestMergePayload_MapReplacesScalar(t *testing.T) {
	t.Parallel()

	dst := map[string]any{"result": "pending"}
	mergePayload(dst, map[string]any{"result": map[string]any{"status": "ok"}})

	m, ok := dst["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", m["status"])
}

func TestMergePayload_DoesNotAliasUpdate(t *testing.T) {
	t.Parallel()

	update := map[string]any{"nested": map[string]any{"k": "v"}}
	dst := map[string]any{}
	mergePayload(dst, update)

	update["nested"].(map[string]any)["k"] = "mutated"
	assert.Equal(t, "v", dst["nested"].(map[string]any)["k"])
}

func TestDiffPayload_AbsentPrevious(t *testing.T) {
	t.Parallel()

	changes := diffPayload(nil, map[string]any{"fresh": 42}, nil, time.Now(), "src", nil)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"fresh"}, changes[0].Path)
	assert.Nil(t, changes[0].Previous)
	assert.Equal(t, 42, changes[0].New)
}

func TestDiffPayload_NilValueOnNewKeyIsRecorded(t *testing.T) {
	t.Parallel()

	changes := diffPayload(map[string]any{}, map[string]any{"k": nil}, nil, time.Now(), "src", nil)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].New)
}

func TestDiffPayload_ScalarReplacedByMapRecordsLeaves(t *testing.T) {
	t.Parallel()

	changes := diffPayload(
		map[string]any{"result": "pending"},
		map[string]any{"result": map[string]any{"status": "ok", "count": 2}},
		nil, time.Now(), "src", nil)

	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, "result", c.Path[0])
		assert.Len(t, c.Path, 2)
	}
}

func TestCopyValue_UnknownTypesPassThrough(t *testing.T) {
	t.Parallel()

	type opaque struct{ n int }
	v := opaque{n: 1}
	assert.Equal(t, v, copyValue(v))
}
