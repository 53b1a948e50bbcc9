// ABOUTME: Package documentation for the gate package
// ABOUTME: Request-time authentication and tenant-aware route protection

// Package gate implements the per-request access checkpoint. Protected path
// prefixes require a valid session cookie; unauthenticated requests are
// redirected to the login page with the original path preserved. Tenant
// resolution failures are governed by an explicit policy flag rather than a
// silent default.
package gate
