// ABOUTME: Tests for the access gate's routing, redirects and tenant policy
// ABOUTME: Covers protected/unprotected paths, cookie refresh and the fail-open flag

package gate

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/tenant"
)

func newGate(t *testing.T, cfg Config) (*Gate, *auth.Cookies) {
	t.Helper()
	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	cookies := auth.NewCookies(verifier, time.Hour)
	resolver := tenant.NewResolver("lantern.app")
	if len(cfg.ProtectedPrefixes) == 0 {
		cfg.ProtectedPrefixes = []string{"/dashboard", "/api"}
	}
	return New(cfg, cookies, resolver, nil, nil), cookies
}

// serveThrough runs a request through the gate into a probe handler and
// reports whether the probe ran, plus what it saw in context.
func serveThrough(g *Gate, req *http.Request) (*httptest.ResponseRecorder, bool, *auth.Principal, string) {
	var reached bool
	var principal *auth.Principal
	var tenantID string
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		principal = auth.FromContext(r.Context())
		tenantID = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	g.Middleware(probe).ServeHTTP(rec, req)
	return rec, reached, principal, tenantID
}

func sessionCookie(t *testing.T, cookies *auth.Cookies, p *auth.Principal) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, cookies.Write(rec, req, p))
	cs := rec.Result().Cookies()
	require.NotEmpty(t, cs)
	return cs[0]
}

func TestGate_UnprotectedPathPassesThrough(t *testing.T) {
	g, _ := newGate(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	rec, reached, principal, _ := serveThrough(g, req)

	assert.True(t, reached)
	assert.Nil(t, principal)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGate_ProtectedPathWithoutSessionRedirects(t *testing.T) {
	g, _ := newGate(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/reports", nil)
	rec, reached, _, _ := serveThrough(g, req)

	require.False(t, reached)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/dashboard/reports", loc.Query().Get("next"))
}

func TestGate_InvalidCookieRedirects(t *testing.T) {
	g, _ := newGate(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "garbage"})
	rec, reached, _, _ := serveThrough(g, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestGate_AuthenticatedRequestPassesWithTenant(t *testing.T) {
	g, cookies := newGate(t, Config{})
	p := &auth.Principal{ID: "u1", Email: "a@acme.test", Role: "user", TenantID: "acme"}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "acme.lantern.app"
	req.AddCookie(sessionCookie(t, cookies, p))
	rec, reached, gotPrincipal, gotTenant := serveThrough(g, req)

	require.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotPrincipal)
	assert.Equal(t, "u1", gotPrincipal.ID)
	assert.Equal(t, "acme", gotTenant)

	// The session cookie must be refreshed on the response
	var refreshed bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			refreshed = true
		}
	}
	assert.True(t, refreshed, "gate must propagate a refreshed session cookie")
}

func TestGate_MissingTenantDeniedByDefault(t *testing.T) {
	g, cookies := newGate(t, Config{AllowMissingTenant: false})
	// No tenant claim and a host outside the root domain
	p := &auth.Principal{ID: "u2", Email: "b@nowhere.test"}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "example.com"
	req.AddCookie(sessionCookie(t, cookies, p))
	rec, reached, _, _ := serveThrough(g, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGate_MissingTenantAllowedUnderFailOpenPolicy(t *testing.T) {
	g, cookies := newGate(t, Config{AllowMissingTenant: true})
	p := &auth.Principal{ID: "u3", Email: "c@nowhere.test"}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "example.com"
	req.AddCookie(sessionCookie(t, cookies, p))
	rec, reached, _, gotTenant := serveThrough(g, req)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, gotTenant)
}

func TestGate_TenantFromSubdomainWhenNoClaim(t *testing.T) {
	g, cookies := newGate(t, Config{})
	p := &auth.Principal{ID: "u4", Email: "d@sub.test"}

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	req.Host = "subco.lantern.app"
	req.AddCookie(sessionCookie(t, cookies, p))
	_, reached, _, gotTenant := serveThrough(g, req)

	require.True(t, reached)
	assert.Equal(t, "subco", gotTenant)
}

func TestGate_CustomLoginPath(t *testing.T) {
	g, _ := newGate(t, Config{LoginPath: "/signin"})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec, _, _, _ := serveThrough(g, req)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/signin", loc.Path)
}
