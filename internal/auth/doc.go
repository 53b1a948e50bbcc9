// ABOUTME: Package documentation for the auth package
// ABOUTME: Session credentials, principal propagation and the OTP sign-in flow

// Package auth implements session credentials for the lantern platform.
//
// Credentials are HS256 JWTs carried in the lantern_session cookie. The token
// claims include the tenant assignment under the app_metadata namespace (with
// a legacy user_metadata fallback); Verify folds whichever namespace is
// present into Principal.TenantID so downstream code never touches raw claims.
//
// Sign-in is passwordless: OTPService issues short-lived one-time codes and
// redeems them for a session cookie. There is no password or MFA surface.
package auth
