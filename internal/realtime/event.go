// ABOUTME: Change-stream event and subscription filter types
// ABOUTME: Row-level insert/update/delete notifications with per-table sequencing

package realtime

import (
	"context"
	"encoding/json"
)

// Op identifies the mutation a change event describes
type Op string

// Change operations, matching the upstream change-stream payloads
const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ChangeEvent is a single row-level change notification. Seq is a per-table
// monotonic sequence assigned at publish time so consumers can detect and
// drop duplicate or out-of-order redelivery; the upstream stream itself
// carries no ordering guarantee across subscriptions.
type ChangeEvent struct {
	Schema string          `json:"schema"`
	Table  string          `json:"table"`
	Op     Op              `json:"eventType"`
	Seq    uint64          `json:"seq"`
	Before json.RawMessage `json:"old,omitempty"`
	After  json.RawMessage `json:"new,omitempty"`
}

// Filter selects which events a subscription receives. Event is "*" or one
// of the Op values.
type Filter struct {
	Schema string
	Table  string
	Event  string
}

// Feed is the black-box subscription primitive. Subscribe returns the event
// channel and an unsubscribe func that is safe to call more than once. The
// channel is closed on unsubscribe and when ctx is cancelled.
type Feed interface {
	Subscribe(ctx context.Context, filter Filter) (<-chan ChangeEvent, func(), error)
}
