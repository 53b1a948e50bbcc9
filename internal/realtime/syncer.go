// ABOUTME: Generic reconciler applying a change-event stream to a collection
// ABOUTME: Strict delivery order, duplicate suppression via sequence numbers

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lanternhq/lantern/internal/metrics"
)

// Drop reasons reported to metrics
const (
	dropDecode    = "decode"
	dropStale     = "stale"
	dropUnmatched = "unmatched"
)

// SyncerConfig configures a Syncer
type SyncerConfig[T Row] struct {
	// Feed is the subscription primitive (the broker in-process, or any
	// transport adapter satisfying the same contract).
	Feed Feed

	// Filter selects the table scope for this subscription.
	Filter Filter

	// Reduce, when set, computes the stored value for a matched update from
	// the previous element and the incoming payload. Used for derived
	// aggregate fields that must be recomputed rather than copied verbatim.
	// When nil the incoming payload replaces the element.
	Reduce func(old, incoming T) T

	// Metrics is optional.
	Metrics *metrics.Collector

	// Logger is optional.
	Logger *slog.Logger
}

// Syncer keeps a Collection consistent with a live change stream. Events are
// applied strictly in delivery order by a single goroutine; there is no
// buffering or reordering. Duplicate or stale redelivery is detected via the
// per-table sequence number and dropped.
type Syncer[T Row] struct {
	cfg        SyncerConfig[T]
	collection *Collection[T]
	logger     *slog.Logger

	mu      sync.Mutex
	seen    map[string]uint64 // id -> highest applied sequence
	stopped bool
	cancel  func()
	done    chan struct{}
}

// NewSyncer creates a syncer over a fresh empty collection
func NewSyncer[T Row](cfg SyncerConfig[T]) *Syncer[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer[T]{
		cfg:        cfg,
		collection: NewCollection[T](),
		logger:     logger.With("component", "syncer", "table", cfg.Filter.Table),
		seen:       make(map[string]uint64),
		done:       make(chan struct{}),
	}
}

// Collection returns the reconciled read model
func (s *Syncer[T]) Collection() *Collection[T] {
	return s.collection
}

// Start subscribes to the feed and begins applying events. The subscription
// is released when ctx is cancelled or Stop is called.
func (s *Syncer[T]) Start(ctx context.Context) error {
	ch, cancel, err := s.cfg.Feed.Subscribe(ctx, s.cfg.Filter)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.cfg.Filter.Table, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		close(s.done)
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				s.apply(ev)
			}
		}
	}()
	return nil
}

// Stop releases the subscription and prevents any further applies. It is
// idempotent and safe to call from any exit path of the owning view.
func (s *Syncer[T]) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-s.done
	}
}

// apply reconciles a single event into the collection
func (s *Syncer[T]) apply(ev ChangeEvent) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	switch ev.Op {
	case OpInsert:
		item, ok := s.decode(ev.After)
		if !ok {
			return
		}
		if s.stale(item.RowID(), ev.Seq) {
			return
		}
		// An element with the same id is kept as the merge target for the
		// next update instead of being duplicated
		if s.collection.insert(item) {
			s.cfg.Metrics.RecordEventApplied("insert")
		}

	case OpUpdate:
		item, ok := s.decode(ev.After)
		if !ok {
			return
		}
		if s.stale(item.RowID(), ev.Seq) {
			return
		}
		var applied bool
		if s.cfg.Reduce != nil {
			applied = s.collection.update(item.RowID(), func(old T) T {
				return s.cfg.Reduce(old, item)
			})
		} else {
			applied = s.collection.replace(item)
		}
		if applied {
			s.cfg.Metrics.RecordEventApplied("update")
		} else {
			// No implicit insert: the row may have been deleted under a
			// concurrent edit, which is expected
			s.cfg.Metrics.RecordEventDropped(dropUnmatched)
		}

	case OpDelete:
		item, ok := s.decode(ev.Before)
		if !ok {
			return
		}
		if s.stale(item.RowID(), ev.Seq) {
			return
		}
		if s.collection.remove(item.RowID()) {
			s.cfg.Metrics.RecordEventApplied("delete")
		} else {
			s.cfg.Metrics.RecordEventDropped(dropUnmatched)
		}

	default:
		s.logger.Debug("ignoring unknown change op", "op", string(ev.Op))
	}
}

// decode unmarshals a row payload, dropping malformed events silently since
// transient malformed payloads must not fail the subscription
func (s *Syncer[T]) decode(raw json.RawMessage) (T, bool) {
	var item T
	if len(raw) == 0 {
		s.cfg.Metrics.RecordEventDropped(dropDecode)
		return item, false
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		s.logger.Debug("dropping malformed change event", "error", err)
		s.cfg.Metrics.RecordEventDropped(dropDecode)
		return item, false
	}
	return item, true
}

// stale reports whether the event's sequence number has already been applied
// for this id, recording the new high-water mark otherwise. Events without a
// sequence (Seq 0) are never treated as stale; an unsequenced transport gets
// the historical at-least-once behavior.
func (s *Syncer[T]) stale(id string, seq uint64) bool {
	if seq == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.seen[id]; ok && seq <= last {
		s.cfg.Metrics.RecordEventDropped(dropStale)
		return true
	}
	s.seen[id] = seq
	return false
}
