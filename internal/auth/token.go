// ABOUTME: JWT verification and minting for lantern session credentials
// ABOUTME: Uses HS256 with a configurable secret; folds tenant claims into Principal

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Principal is an authenticated identity extracted from a session credential.
// TenantID is resolved from the token's tenant claim at parse time: the
// current app_metadata namespace wins over the legacy user_metadata one.
// Empty TenantID means the token carried no tenant claim.
type Principal struct {
	ID       string
	Email    string
	Role     string // "admin" or "user"
	TenantID string
}

// TokenVerifier defines the interface for credential verification
type TokenVerifier interface {
	Verify(tokenString string) (*Principal, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and extracts the principal. The "sub" claim is
// required; email, role and the tenant namespaces are optional.
func (v *JWTVerifier) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	p := &Principal{ID: sub}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		p.Role = role
	}
	p.TenantID = tenantClaim(claims)
	return p, nil
}

// tenantClaim extracts the tenant ID from the current claims namespace,
// falling back to the legacy one for tokens minted before the migration.
func tenantClaim(claims jwt.MapClaims) string {
	for _, ns := range []string{"app_metadata", "user_metadata"} {
		meta, ok := claims[ns].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := meta["tenant_id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// Generate creates a new session JWT for the given principal with expiration
func (v *JWTVerifier) Generate(p *Principal, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   p.ID,
		"email": p.Email,
		"role":  p.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	}
	if p.TenantID != "" {
		claims["app_metadata"] = map[string]any{"tenant_id": p.TenantID}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
