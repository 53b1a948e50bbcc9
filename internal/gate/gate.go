// ABOUTME: Per-request access gate guarding protected path prefixes
// ABOUTME: Redirects unauthenticated requests to /login with a next parameter

package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/metrics"
	"github.com/lanternhq/lantern/internal/tenant"
)

// DefaultLoginPath is where unauthenticated requests are sent
const DefaultLoginPath = "/login"

// Config controls the gate's routing policy
type Config struct {
	// ProtectedPrefixes lists path prefixes that require a valid session.
	// Everything else passes through untouched.
	ProtectedPrefixes []string

	// LoginPath is the redirect target for unauthenticated requests.
	// Defaults to DefaultLoginPath.
	LoginPath string

	// AllowMissingTenant keeps the historical fail-open behavior: an
	// authenticated request whose tenant cannot be resolved is allowed
	// through with a warning. When false the request is denied with 403.
	AllowMissingTenant bool
}

// Gate is the per-request access decision function. It holds no mutable
// state; every invocation works on its own request and response.
type Gate struct {
	cfg      Config
	cookies  *auth.Cookies
	resolver *tenant.Resolver
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// New creates an access gate. Pass nil logger for default.
func New(cfg Config, cookies *auth.Cookies, resolver *tenant.Resolver, collector *metrics.Collector, logger *slog.Logger) *Gate {
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:      cfg,
		cookies:  cookies,
		resolver: resolver,
		metrics:  collector,
		logger:   logger.With("component", "gate"),
	}
}

// tenantKey carries the resolved tenant ID through the request context
type tenantKey struct{}

// TenantFromContext returns the tenant ID the gate resolved for this request,
// or empty if the request was not tenant-scoped.
func TenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey{}).(string)
	return id
}

// Middleware returns the gate as a chi-compatible middleware.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// Credential read errors are treated identically to "no principal":
		// the browser gets a login redirect, never a 5xx.
		principal, err := g.cookies.Read(r)
		if err != nil {
			g.redirectToLogin(w, r)
			return
		}

		tenantID, ok := g.resolver.Resolve(r.Host, principal)
		if !ok {
			if !g.cfg.AllowMissingTenant {
				g.metrics.RecordGateDecision(metrics.GateDenied)
				http.Error(w, "no tenant for this account", http.StatusForbidden)
				return
			}
			g.metrics.RecordGateDecision(metrics.GateMissingTenant)
			g.logger.Warn("allowing request with unresolved tenant",
				"path", r.URL.Path,
				"host", r.Host,
				"user_id", principal.ID)
		}

		// Slide the session forward on every authenticated request
		if err := g.cookies.Refresh(w, r, principal); err != nil {
			g.logger.Error("failed to refresh session cookie", "error", err)
		}

		g.metrics.RecordGateDecision(metrics.GateAllowed)
		ctx := auth.WithPrincipal(r.Context(), principal)
		ctx = context.WithValue(ctx, tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isProtected classifies the path against the configured prefixes
func (g *Gate) isProtected(path string) bool {
	for _, prefix := range g.cfg.ProtectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// redirectToLogin sends the browser to the login page, preserving the
// originally requested path in the next parameter.
func (g *Gate) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	g.metrics.RecordGateDecision(metrics.GateRedirected)
	target := g.cfg.LoginPath + "?next=" + url.QueryEscape(r.URL.Path)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
