// ABOUTME: Package documentation for the session package
// ABOUTME: Client-side session/user/tenant state machine with injected provider

// Package session holds the client-side session state machine. One Store is
// created per mounted view and driven by the external auth provider's event
// stream; provider failures degrade to the Anonymous state instead of
// propagating. Teardown is context cancellation, which guarantees a late
// fetch result cannot mutate state after unmount.
package session
