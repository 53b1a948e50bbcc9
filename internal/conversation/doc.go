// ABOUTME: Package documentation for the conversation package
// ABOUTME: Ownership/queue transfer service with append-only audit semantics

// Package conversation implements conversation ownership transfers. A
// transfer repoints the conversation's owner or queue pointer, appends an
// immutable audit record in the same transaction, and publishes the updated
// row on the change feed. The caller's tenant scope is recorded as supplied;
// row-level authorization is an external capability check.
package conversation
