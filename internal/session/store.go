// ABOUTME: Mount-scoped session state machine backed by an external auth provider
// ABOUTME: Uninitialized -> Loading -> Authenticated/Anonymous, driven by the auth event stream

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/tenant"
)

// State is the lifecycle state of a session store
type State int

// Session store states
const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Session is the provider-issued session: the authenticated principal plus
// its expiry. Destroyed on sign-out or expiry.
type Session struct {
	User   *auth.Principal
	Expiry time.Time
}

// Event is a notification from the provider's auth event stream. A nil
// Session means signed out.
type Event struct {
	Type    string // e.g. "SIGNED_IN", "SIGNED_OUT", "TOKEN_REFRESHED"
	Session *Session
}

// AuthClient is the external auth provider. It is injected explicitly; the
// store never reaches for a process-wide singleton connection.
type AuthClient interface {
	// FetchSession returns the current session, or nil if none exists.
	FetchSession(ctx context.Context) (*Session, error)

	// Events returns the auth event stream. The channel is closed when ctx
	// is cancelled.
	Events(ctx context.Context) (<-chan Event, error)

	// SignOut invalidates the provider-side session.
	SignOut(ctx context.Context) error

	// SignInWithOTP starts a one-time-code sign-in for the address.
	SignInWithOTP(ctx context.Context, email string) error
}

// Snapshot is the read model exposed to the owning view. TenantID is always
// derived from the current user via the resolver, never cached on its own.
type Snapshot struct {
	Session  *Session
	User     *auth.Principal
	TenantID string
	Loading  bool
}

// Config configures a Store
type Config struct {
	Client   AuthClient
	Resolver *tenant.Resolver

	// Host is the host the view was served from, used as the resolver's
	// fallback path when the user carries no tenant claim.
	Host string

	Logger *slog.Logger
}

// Store is the mount-scoped session state machine. One Store belongs to one
// mounted view; transitions are strictly ordered by the delivery order of
// the provider's event stream. Teardown is the cancellation of the context
// passed to Start: a late initial-fetch result never mutates state after it.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	state   State
	session *Session

	done chan struct{}
}

// New creates a session store in the Uninitialized state
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("session: Client is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("session: Resolver is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:    cfg,
		logger: logger.With("component", "session"),
		state:  Uninitialized,
		done:   make(chan struct{}),
	}, nil
}

// Start begins the lifecycle: subscribe to the auth event stream, fetch the
// initial session, then follow stream events until ctx is cancelled. Start
// returns once the goroutine is running; it may only be called once.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Uninitialized {
		s.mu.Unlock()
		return fmt.Errorf("session: already started")
	}
	s.state = Loading
	s.mu.Unlock()

	// Subscribe before the initial fetch so no transition is missed between
	// the fetch result and the first stream event
	events, err := s.cfg.Client.Events(ctx)
	if err != nil {
		// Degrade to anonymous rather than surface the provider error
		s.logger.Warn("auth event stream unavailable", "error", err)
		events = nil
	}

	go s.run(ctx, events)
	return nil
}

// run is the single goroutine that owns all state transitions
func (s *Store) run(ctx context.Context, events <-chan Event) {
	defer close(s.done)

	initial, err := s.cfg.Client.FetchSession(ctx)
	if ctx.Err() != nil {
		// Torn down while the fetch was in flight; discard the result
		return
	}
	if err != nil {
		// Fail open to anonymous, never panic across the mount boundary
		s.logger.Warn("initial session fetch failed", "error", err)
		s.transition(nil)
	} else {
		s.transition(initial)
	}

	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug("auth event", "type", ev.Type)
			s.transition(ev.Session)
		}
	}
}

// transition moves to Authenticated or Anonymous based on the session
func (s *Store) transition(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session != nil && session.User != nil {
		s.state = Authenticated
		s.session = session
	} else {
		s.state = Anonymous
		s.session = nil
	}
	s.logger.Debug("session state", "state", s.state.String())
}

// State returns the current lifecycle state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current read model. The tenant is recomputed from the
// current user on every call.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Session: s.session,
		Loading: s.state == Uninitialized || s.state == Loading,
	}
	if s.session != nil {
		snap.User = s.session.User
	}
	if id, ok := s.cfg.Resolver.Resolve(s.cfg.Host, snap.User); ok {
		snap.TenantID = id
	}
	return snap
}

// SignOut clears the local session first, then notifies the provider. A
// provider failure does not undo the local sign-out; the network error is
// logged and the caller still ends up signed out locally.
func (s *Store) SignOut(ctx context.Context) error {
	s.transition(nil)

	if err := s.cfg.Client.SignOut(ctx); err != nil {
		s.logger.Warn("provider sign-out failed, local session already cleared", "error", err)
	}
	return nil
}

// SignInWithOTP asks the provider to start a one-time-code sign-in. The
// resulting session arrives through the auth event stream.
func (s *Store) SignInWithOTP(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("session: email is required")
	}
	return s.cfg.Client.SignInWithOTP(ctx, email)
}

// Done is closed when the lifecycle goroutine has exited after teardown
func (s *Store) Done() <-chan struct{} {
	return s.done
}
