package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voralis/stageflow/types"
)

func TestNewStore_Defaults(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"query": "aspirin"})
	snap := s.Read()

	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, types.StatusIdle, snap.Status)
	assert.Equal(t, "aspirin", snap.Payload["query"])
	assert.False(t, snap.CreatedAt.IsZero())
	assert.Equal(t, snap.CreatedAt, snap.UpdatedAt)
	assert.Equal(t, 0, s.HistoryLen())
}

func TestStore_ReadIsIsolated(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{
		"trip": map[string]any{"destination": "Kyoto"},
	})

	snap := s.Read()
	snap.Payload["trip"].(map[string]any)["destination"] = "Osaka"
	snap.Payload["injected"] = true

	fresh := s.Read()
	assert.Equal(t, "Kyoto", fresh.Payload["trip"].(map[string]any)["destination"])
	assert.NotContains(t, fresh.Payload, "injected")
}

func TestStore_UpdateMergesNestedMaps(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{
		"trip": map[string]any{
			"destination": "Kyoto",
			"days":        3,
		},
	})

	snap := s.UpdatePayload(map[string]any{
		"trip": map[string]any{"days": 5},
	}, "planner")

	trip := snap.Payload["trip"].(map[string]any)
	assert.Equal(t, "Kyoto", trip["destination"], "sibling keys survive a nested patch")
	assert.Equal(t, 5, trip["days"])
}

func TestStore_UpdateReplacesNonMapValuesWholesale(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"results": []any{"a", "b"}})
	snap := s.UpdatePayload(map[string]any{"results": []any{"c"}}, "search")

	assert.Equal(t, []any{"c"}, snap.Payload["results"])
}

func TestStore_UpdateComputesChangeRecords(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{
		"query": "aspirin",
		"trip":  map[string]any{"days": 3},
	})

	var gotChanges []types.StateChange
	s.Subscribe(func(_ *types.State, changes []types.StateChange) {
		gotChanges = changes
	})

	s.UpdatePayload(map[string]any{
		"query": "ibuprofen",
		"trip":  map[string]any{"days": 5},
	}, "pharmacy")

	require.Len(t, gotChanges, 2)
	byPath := map[string]types.StateChange{}
	for _, c := range gotChanges {
		key := ""
		for i, p := range c.Path {
			if i > 0 {
				key += "."
			}
			key += p
		}
		byPath[key] = c
	}

	q := byPath["query"]
	assert.Equal(t, "aspirin", q.Previous)
	assert.Equal(t, "ibuprofen", q.New)
	assert.Equal(t, "pharmacy", q.Source)

	d := byPath["trip.days"]
	assert.Equal(t, 3, d.Previous)
	assert.Equal(t, 5, d.New)
}

func TestStore_NoOpUpdateSkipsNotificationButGrowsHistory(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"query": "aspirin"})

	notified := 0
	s.Subscribe(func(_ *types.State, _ []types.StateChange) { notified++ })

	s.UpdatePayload(map[string]any{"query": "aspirin"}, "noop")

	assert.Equal(t, 0, notified, "identical values must not notify")
	assert.Equal(t, 1, s.HistoryLen(), "history records the attempt regardless")
}

func TestStore_EnvelopePatch(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	active := types.StatusActive
	stage := "fetch"
	exec := "search_agent"

	snap := s.Update(Patch{Status: &active, Stage: &stage, Executor: &exec}, "engine")

	assert.Equal(t, types.StatusActive, snap.Status)
	assert.Equal(t, "fetch", snap.CurrentStage)
	assert.Equal(t, "search_agent", snap.CurrentExecutor)
}

func TestStore_UpdatedAtMonotonic(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	prev := s.Read().UpdatedAt
	for i := 0; i < 5; i++ {
		snap := s.UpdatePayload(map[string]any{"n": i}, "tick")
		assert.False(t, snap.UpdatedAt.Before(prev))
		prev = snap.UpdatedAt
	}
}

func TestStore_HistoryMatchesSnapshots(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"n": 0})
	var before []*types.State
	for i := 1; i <= 3; i++ {
		before = append(before, s.Read())
		s.UpdatePayload(map[string]any{"n": i}, "counter")
	}

	hist := s.History()
	require.Len(t, hist, 3)
	for i, h := range hist {
		assert.Equal(t, before[i].Payload, h.Payload, "history[%d] is the pre-update snapshot", i)
	}
}

func TestStore_CheckpointRollback(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"n": 0})
	s.UpdatePayload(map[string]any{"n": 1}, "counter")

	cp := s.Checkpoint()
	want := s.Read()

	s.UpdatePayload(map[string]any{"n": 2}, "counter")
	s.UpdatePayload(map[string]any{"n": 3, "extra": true}, "counter")

	require.NoError(t, s.Rollback(cp))
	got := s.Read()
	assert.Equal(t, want.Payload, got.Payload)
	assert.Equal(t, want.Status, got.Status)
}

func TestStore_RollbackInvalidToken(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"n": 0})
	cp := s.Checkpoint() // history empty, index 0 is out of range

	err := s.Rollback(cp)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCheckpoint, types.GetErrorCode(err))
	assert.Equal(t, 0, snapInt(t, s, "n"), "failed rollback leaves state untouched")
}

func TestStore_RollbackDoesNotGrowHistory(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"n": 0})
	cp := s.Checkpoint()
	s.UpdatePayload(map[string]any{"n": 1}, "counter")

	require.NoError(t, s.Rollback(cp))
	assert.Equal(t, 1, s.HistoryLen(), "rollback is a restore, not a mutation")
}

func TestStore_NamedCheckpoints(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"step": "start"})
	s.UpdatePayload(map[string]any{"step": "validated"}, "validator")

	s.SaveCheckpoint("before-charge")
	want := s.Read()

	s.UpdatePayload(map[string]any{"step": "charged", "amount": 42}, "biller")

	require.NoError(t, s.RollbackTo("before-charge"))
	got := s.Read()
	assert.Equal(t, want.Payload, got.Payload)
	assert.Contains(t, s.Checkpoints(), "before-charge")
}

func TestStore_RollbackToUnknownName(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	err := s.RollbackTo("never-saved")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidCheckpoint, types.GetErrorCode(err))
}

func TestStore_SaveCheckpointReplacesName(t *testing.T) {
	t.Parallel()

	s := NewStore(map[string]any{"n": 0})
	s.SaveCheckpoint("mark")
	s.UpdatePayload(map[string]any{"n": 1}, "counter")
	s.SaveCheckpoint("mark")
	s.UpdatePayload(map[string]any{"n": 2}, "counter")

	require.NoError(t, s.RollbackTo("mark"))
	assert.Equal(t, 1, snapInt(t, s, "n"))
}

func TestStore_SubscribersAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)

	var order []string
	s.Subscribe(func(_ *types.State, _ []types.StateChange) {
		order = append(order, "first")
		panic("listener exploded")
	})
	s.Subscribe(func(_ *types.State, _ []types.StateChange) {
		order = append(order, "second")
	})

	s.UpdatePayload(map[string]any{"k": "v"}, "test")

	assert.Equal(t, []string{"first", "second"}, order,
		"a panicking listener must not prevent later listeners")
	assert.Equal(t, "v", snapStr(t, s, "k"), "state survives listener panics")
}

func TestStore_Unsubscribe(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	calls := 0
	unsub := s.Subscribe(func(_ *types.State, _ []types.StateChange) { calls++ })

	s.UpdatePayload(map[string]any{"a": 1}, "test")
	unsub()
	s.UpdatePayload(map[string]any{"a": 2}, "test")

	assert.Equal(t, 1, calls)
}

func TestStore_NotificationOrderFollowsUpdateOrder(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	var seen []any
	s.Subscribe(func(snap *types.State, _ []types.StateChange) {
		seen = append(seen, snap.Payload["n"])
	})

	for i := 0; i < 4; i++ {
		s.UpdatePayload(map[string]any{"n": i}, "counter")
	}

	assert.Equal(t, []any{0, 1, 2, 3}, seen)
}

func snapInt(t *testing.T, s *Store, key string) int {
	t.Helper()
	v, ok := s.Read().Payload[key].(int)
	require.True(t, ok)
	return v
}

func snapStr(t *testing.T, s *Store, key string) string {
	t.Helper()
	v, ok := s.Read().Payload[key].(string)
	require.True(t, ok)
	return v
}
