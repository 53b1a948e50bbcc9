// ABOUTME: Package documentation for the realtime package
// ABOUTME: Change-stream reconciliation keeping collections consistent with backend state

// Package realtime keeps in-memory collections consistent with a live stream
// of row-level change events.
//
// A Syncer owns one subscription to a Feed and applies insert, update and
// delete events to its Collection strictly in delivery order. Sequence
// numbers assigned at publish time let the syncer drop duplicate or stale
// redelivery; unmatched updates and deletes are dropped rather than treated
// as implicit inserts, since concurrent edits make those conditions routine.
//
// Broker is the in-process Feed implementation. Transports that deliver the
// same per-table payloads can satisfy Feed without the syncer changing.
package realtime
