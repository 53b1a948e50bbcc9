// ABOUTME: Package documentation for the store package
// ABOUTME: SQLite-backed persistence for tenants, users, conversations and transfers

// Package store provides persistence for the lantern platform.
//
// The store holds the tenant and user registry, conversations with their
// current owner pointer, the append-only conversation transfer audit trail,
// and pending one-time sign-in codes. SQLiteStore is the only implementation;
// consumers declare narrow interfaces for exactly the operations they need.
package store
