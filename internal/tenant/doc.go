// ABOUTME: Package documentation for the tenant package
// ABOUTME: Pure tenant identity resolution shared by the gate and session layers

// Package tenant resolves which customer organization a request or session
// belongs to. The resolver is a pure function over the request host and the
// authenticated principal; callers decide whether a missing tenant is fatal.
package tenant
