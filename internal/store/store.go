// ABOUTME: Store data types and sentinel errors for lantern persistence
// ABOUTME: Defines Tenant, User, Conversation, TransferRecord and OTP entities

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with an existing row
var ErrConflict = errors.New("already exists")

// Plan constants for tenant billing plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Tenant represents an isolated customer organization sharing the deployment.
// Tenants are immutable once created; the plan governs feature gates elsewhere.
type Tenant struct {
	ID        string
	Name      string
	Domain    string
	Plan      string // "free", "pro", "enterprise"
	CreatedAt time.Time
}

// Role constants for user roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an authenticated account. TenantID is assigned at account
// creation and never reassigned for the lifetime of the user.
type User struct {
	ID        string
	Email     string
	Role      string // "admin" or "user"
	TenantID  string
	CreatedAt time.Time
}

// Conversation represents a customer conversation owned by either an agent
// or a queue. Exactly one of AgentID/QueueID is set at any time.
type Conversation struct {
	ID        string
	TenantID  string
	AgentID   string
	QueueID   string
	Subject   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transfer target types
const (
	TargetAgent = "agent"
	TargetQueue = "queue"
)

// TransferTarget names the destination of an ownership transfer.
type TransferTarget struct {
	Type string // "agent" or "queue"
	ID   string
}

// TransferRecord is an append-only audit entry for a conversation ownership
// transfer. Records are created once per transfer and never mutated.
type TransferRecord struct {
	ID             string
	ConversationID string
	FromTarget     *TransferTarget // nil when the conversation was unassigned
	ToTarget       TransferTarget
	Note           string
	TenantID       string
	Actor          string // user ID of the caller, empty under the dev bypass
	CreatedAt      time.Time
}

// OTPCode holds a pending one-time sign-in code. Only the bcrypt hash of the
// code is stored; the plaintext exists only in the delivery channel.
type OTPCode struct {
	Email     string
	CodeHash  []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}
