// ABOUTME: Tenant identity resolution from principal claims or request host
// ABOUTME: Pure function; claim wins over subdomain, unresolvable inputs return false

package tenant

import (
	"net"
	"strings"

	"github.com/lanternhq/lantern/internal/auth"
)

// Resolver maps a request host and/or an authenticated principal to a tenant
// identifier. Resolution is pure: no I/O, no side effects, never an error.
type Resolver struct {
	// RootDomain is the platform's root domain suffix, e.g. "lantern.app".
	// Hosts like "acme.lantern.app" resolve to tenant "acme".
	RootDomain string
}

// NewResolver creates a resolver for the given root domain.
func NewResolver(rootDomain string) *Resolver {
	return &Resolver{RootDomain: strings.ToLower(strings.TrimSuffix(rootDomain, "."))}
}

// Resolve returns the tenant ID for the request, and whether one resolved.
//
// Precedence:
//  1. A tenant claim on the principal. This is the trusted path and wins
//     regardless of host, since the claim was assigned at account creation.
//  2. The leading subdomain label of a host under RootDomain. Hosts with
//     fewer than three dot-separated labels, or outside the root domain,
//     do not resolve. The host path only serves public sign-up flows and
//     never grants access by itself.
func (r *Resolver) Resolve(host string, p *auth.Principal) (string, bool) {
	if p != nil && p.TenantID != "" {
		return p.TenantID, true
	}
	return r.resolveHost(host)
}

// resolveHost extracts the candidate subdomain from the host.
func (r *Resolver) resolveHost(host string) (string, bool) {
	if host == "" || r.RootDomain == "" {
		return "", false
	}

	// Hosts may arrive with a port attached
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if !strings.HasSuffix(host, "."+r.RootDomain) {
		return "", false
	}
	if strings.Count(host, ".") < 2 {
		return "", false
	}

	// The leading label is the candidate tenant
	sub, _, _ := strings.Cut(host, ".")
	if sub == "" {
		return "", false
	}
	return sub, true
}
