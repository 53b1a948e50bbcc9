// ABOUTME: Tests for the change-stream reconciler
// ABOUTME: Covers apply semantics, duplicate/stale suppression and teardown

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSyncer wires a syncer to a broker subscription on "rows"
func startSyncer(t *testing.T, b *Broker, reduce func(old, incoming testRow) testRow) *Syncer[testRow] {
	t.Helper()
	s := NewSyncer(SyncerConfig[testRow]{
		Feed:   b,
		Filter: Filter{Table: "rows"},
		Reduce: reduce,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

// waitLen polls until the collection reaches the expected size
func waitLen(t *testing.T, s *Syncer[testRow], want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.Collection().Len() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("collection has %d elements, want %d", s.Collection().Len(), want)
}

// settle gives the apply goroutine a moment to drain the channel
func settle() { time.Sleep(50 * time.Millisecond) }

func TestSyncer_InsertUpdateDelete(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	s := startSyncer(t, b, nil)

	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a", Name: "one"}))
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "b", Name: "two"}))
	waitLen(t, s, 2)

	require.NoError(t, b.Publish("public", "rows", OpUpdate, nil, testRow{ID: "a", Name: "one-v2"}))
	require.NoError(t, b.Publish("public", "rows", OpDelete, testRow{ID: "b"}, nil))
	waitLen(t, s, 1)

	got, ok := s.Collection().Get("a")
	require.True(t, ok)
	assert.Equal(t, "one-v2", got.Name)
}

func TestSyncer_RedundantInsertsNeverDuplicate(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	s := startSyncer(t, b, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	}
	settle()

	assert.Equal(t, 1, s.Collection().Len())
}

func TestSyncer_UpdateWithoutMatchIsDropped(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	s := startSyncer(t, b, nil)

	require.NoError(t, b.Publish("public", "rows", OpUpdate, nil, testRow{ID: "ghost", Name: "x"}))
	settle()

	// No implicit insert
	assert.Equal(t, 0, s.Collection().Len())
}

func TestSyncer_DeleteWithoutMatchIsNoOp(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	s := startSyncer(t, b, nil)

	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	waitLen(t, s, 1)

	require.NoError(t, b.Publish("public", "rows", OpDelete, testRow{ID: "ghost"}, nil))
	settle()

	assert.Equal(t, 1, s.Collection().Len())
}

func TestSyncer_InsertedAndNotDeletedSurvive(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	s := startSyncer(t, b, nil)

	// Arbitrary mixed sequence over ids a, b, c
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "b"}))
	require.NoError(t, b.Publish("public", "rows", OpUpdate, nil, testRow{ID: "a", Name: "v2"}))
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "c"}))
	require.NoError(t, b.Publish("public", "rows", OpDelete, testRow{ID: "b"}, nil))
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	waitLen(t, s, 2)

	ids := []string{}
	for _, row := range s.Collection().Snapshot() {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestSyncer_StaleSequenceDropped(t *testing.T) {
	s := NewSyncer(SyncerConfig[testRow]{
		Feed:   NewBroker(nil),
		Filter: Filter{Table: "rows"},
	})

	// Apply directly so sequence numbers can be forged
	s.apply(ChangeEvent{Op: OpInsert, Seq: 5, After: []byte(`{"id":"a","name":"v5"}`)})
	s.apply(ChangeEvent{Op: OpUpdate, Seq: 7, After: []byte(`{"id":"a","name":"v7"}`)})
	// Redelivery of an older event must not regress the element
	s.apply(ChangeEvent{Op: OpUpdate, Seq: 6, After: []byte(`{"id":"a","name":"v6"}`)})
	s.apply(ChangeEvent{Op: OpUpdate, Seq: 7, After: []byte(`{"id":"a","name":"v7-dup"}`)})

	got, ok := s.Collection().Get("a")
	require.True(t, ok)
	assert.Equal(t, "v7", got.Name)
}

func TestSyncer_UnsequencedEventsAlwaysApply(t *testing.T) {
	s := NewSyncer(SyncerConfig[testRow]{
		Feed:   NewBroker(nil),
		Filter: Filter{Table: "rows"},
	})

	s.apply(ChangeEvent{Op: OpInsert, After: []byte(`{"id":"a","name":"v1"}`)})
	s.apply(ChangeEvent{Op: OpUpdate, After: []byte(`{"id":"a","name":"v2"}`)})

	got, _ := s.Collection().Get("a")
	assert.Equal(t, "v2", got.Name)
}

func TestSyncer_MalformedEventsDroppedSilently(t *testing.T) {
	s := NewSyncer(SyncerConfig[testRow]{
		Feed:   NewBroker(nil),
		Filter: Filter{Table: "rows"},
	})

	s.apply(ChangeEvent{Op: OpInsert, After: []byte(`{broken`)})
	s.apply(ChangeEvent{Op: OpInsert})

	assert.Equal(t, 0, s.Collection().Len())
}

func TestSyncer_ReduceRecomputesAggregates(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()
	// Count is a derived running aggregate, not copied from the payload
	s := startSyncer(t, b, func(old, incoming testRow) testRow {
		incoming.Count = old.Count + 1
		return incoming
	})

	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	require.NoError(t, b.Publish("public", "rows", OpUpdate, nil, testRow{ID: "a", Count: 99}))
	require.NoError(t, b.Publish("public", "rows", OpUpdate, nil, testRow{ID: "a", Count: 99}))
	settle()

	got, ok := s.Collection().Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got.Count)
}

func TestSyncer_StopIsIdempotentAndHaltsApplies(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	s := NewSyncer(SyncerConfig[testRow]{Feed: b, Filter: Filter{Table: "rows"}})
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	waitLen(t, s, 1)

	s.Stop()
	s.Stop() // must not panic or block

	// Applies after stop never mutate the collection
	s.apply(ChangeEvent{Op: OpInsert, After: []byte(`{"id":"b"}`)})
	assert.Equal(t, 1, s.Collection().Len())
}

func TestSyncer_StopBeforeStart(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	s := NewSyncer(SyncerConfig[testRow]{Feed: b, Filter: Filter{Table: "rows"}})
	s.Stop()

	// Start after stop releases the subscription immediately
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, b.Publish("public", "rows", OpInsert, nil, testRow{ID: "a"}))
	settle()
	assert.Equal(t, 0, s.Collection().Len())
}
