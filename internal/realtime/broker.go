// ABOUTME: In-memory fan-out change feed implementing the Feed interface
// ABOUTME: Assigns per-table sequence numbers and drops events for slow subscribers

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber
	subscriberBufferSize = 64
)

// Broker provides in-memory pub/sub for row-level change events. The server
// publishes a change after every relevant write; subscribers receive events
// for their table filter as they happen. Sequence numbers are assigned per
// table at publish time, before fan-out, so every subscriber observes the
// same ordering.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]subscriber // schema.table -> subID -> sub
	seq         map[string]uint64                // schema.table -> last sequence
	logger      *slog.Logger
}

type subscriber struct {
	ch     chan ChangeEvent
	filter Filter
}

// NewBroker creates a broker. Pass nil logger for default.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]map[string]subscriber),
		seq:         make(map[string]uint64),
		logger:      logger.With("component", "broker"),
	}
}

// Subscribe registers for events matching the filter. The returned cancel
// func is idempotent; it closes the channel and releases the subscription.
// The subscription is also cleaned up when ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, filter Filter) (<-chan ChangeEvent, func(), error) {
	if filter.Table == "" {
		return nil, nil, fmt.Errorf("filter.Table is required")
	}
	if filter.Schema == "" {
		filter.Schema = "public"
	}
	if filter.Event == "" {
		filter.Event = "*"
	}

	key := filter.Schema + "." + filter.Table
	subID := uuid.New().String()
	ch := make(chan ChangeEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]subscriber)
	}
	b.subscribers[key][subID] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "table", key, "sub_id", subID)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.unsubscribe(key, subID)
		})
	}

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// Publish marshals the row states and fans the event out to all matching
// subscribers. Non-blocking: events are dropped for subscribers whose
// channels are full.
func (b *Broker) Publish(schema, table string, op Op, before, after any) error {
	if schema == "" {
		schema = "public"
	}
	ev := ChangeEvent{Schema: schema, Table: table, Op: op}

	var err error
	if before != nil {
		if ev.Before, err = json.Marshal(before); err != nil {
			return fmt.Errorf("marshaling before state: %w", err)
		}
	}
	if after != nil {
		if ev.After, err = json.Marshal(after); err != nil {
			return fmt.Errorf("marshaling after state: %w", err)
		}
	}

	key := schema + "." + table

	// Sends stay under the lock: unsubscribe closes channels under the same
	// lock, so a send can never hit a closed channel. Sends are non-blocking,
	// so the hold time is bounded.
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[key]++
	ev.Seq = b.seq[key]
	for _, sub := range b.subscribers[key] {
		if sub.filter.Event != "*" && sub.filter.Event != string(op) {
			continue
		}
		select {
		case sub.ch <- ev:
			// Sent
		default:
			// Subscriber channel full, drop the event for this subscriber
			b.logger.Debug("dropped event for slow subscriber",
				"table", key,
				"seq", ev.Seq)
		}
	}
	return nil
}

// unsubscribe removes a subscription and closes its channel
func (b *Broker) unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	sub, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(sub.ch)

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "table", key, "sub_id", subID)
}

// Close shuts down the broker and closes all subscriber channels
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, sub := range subs {
			close(sub.ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broker closed")
}
