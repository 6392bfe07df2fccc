package state

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/voralis/stageflow/types"
)

// genPayload generates small JSON-shaped payloads with one level of nesting,
// mirroring what stage executors produce in practice.
func genPayload() *rapid.Generator[map[string]any] {
	keys := rapid.SampledFrom([]string{"query", "city", "count", "nested", "list"})
	scalar := rapid.OneOf(
		rapid.StringMatching(`[a-z]{1,6}`).AsAny(),
		rapid.IntRange(0, 9).AsAny(),
		rapid.Bool().AsAny(),
	)
	return rapid.Custom(func(t *rapid.T) map[string]any {
		out := map[string]any{}
		n := rapid.IntRange(0, 4).Draw(t, "n")
		for i := 0; i < n; i++ {
			k := keys.Draw(t, "key")
			if k == "nested" {
				inner := map[string]any{}
				m := rapid.IntRange(1, 3).Draw(t, "m")
				for j := 0; j < m; j++ {
					inner[keys.Draw(t, "innerKey")] = scalar.Draw(t, "innerVal")
				}
				out[k] = inner
				continue
			}
			out[k] = scalar.Draw(t, "val")
		}
		return out
	})
}

func TestProperty_UpdateEqualsHistoryPlusPatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore(genPayload().Draw(t, "initial"))

		updates := rapid.SliceOfN(genPayload(), 1, 6).Draw(t, "updates")
		for _, u := range updates {
			s.UpdatePayload(u, "prop")
		}

		// Replaying the update sequence over the first history entry must
		// reproduce the current payload.
		hist := s.History()
		replayed := copyPayload(hist[0].Payload)
		for _, u := range updates {
			mergePayload(replayed, u)
		}
		if got := s.Read().Payload; !reflect.DeepEqual(replayed, got) {
			t.Fatalf("replay mismatch: %#v vs %#v", replayed, got)
		}
	})
}

func TestProperty_IdenticalUpdateNeverNotifies(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := genPayload().Draw(t, "initial")
		s := NewStore(initial)

		notified := false
		s.Subscribe(func(_ *types.State, _ []types.StateChange) { notified = true })

		// Re-applying the exact current values is a notification no-op.
		s.UpdatePayload(s.Read().Payload, "prop")
		if notified {
			t.Fatalf("deep-equal update must not notify")
		}
		if s.HistoryLen() != 1 {
			t.Fatalf("history must still record the attempt")
		}
	})
}

func TestProperty_RollbackRestoresCheckpointState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore(genPayload().Draw(t, "initial"))
		for _, u := range rapid.SliceOfN(genPayload(), 0, 3).Draw(t, "pre") {
			s.UpdatePayload(u, "prop")
		}

		cp := s.Checkpoint()
		want := s.Read()

		post := rapid.SliceOfN(genPayload(), 1, 4).Draw(t, "post")
		for _, u := range post {
			s.UpdatePayload(u, "prop")
		}

		if err := s.Rollback(cp); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		got := s.Read()
		if !reflect.DeepEqual(want.Payload, got.Payload) {
			t.Fatalf("rollback mismatch: %#v vs %#v", want.Payload, got.Payload)
		}
	})
}
