// ABOUTME: One-time sign-in code persistence for the OTP auth flow
// ABOUTME: Stores only bcrypt hashes; redeemed and expired codes are deleted

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveOTP upserts the pending code for an email. A fresh request replaces any
// outstanding code for the same address.
func (s *SQLiteStore) SaveOTP(ctx context.Context, code *OTPCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otp_codes (email, code_hash, expires_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		code.Email, code.CodeHash,
		code.ExpiresAt.UTC().Format(time.RFC3339Nano),
		code.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving otp code: %w", err)
	}
	return nil
}

// GetOTP returns the pending code for an email, or ErrNotFound if none exists
// or the code has expired. Expired rows are removed opportunistically.
func (s *SQLiteStore) GetOTP(ctx context.Context, email string) (*OTPCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT email, code_hash, expires_at, created_at FROM otp_codes WHERE email = ?`, email)

	var code OTPCode
	var expiresAt, createdAt string
	err := row.Scan(&code.Email, &code.CodeHash, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning otp code: %w", err)
	}
	code.ExpiresAt = parseTime(expiresAt)
	code.CreatedAt = parseTime(createdAt)

	if time.Now().After(code.ExpiresAt) {
		_ = s.DeleteOTP(ctx, email)
		return nil, ErrNotFound
	}
	return &code, nil
}

// DeleteOTP removes the pending code for an email. Deleting a missing code is
// not an error.
func (s *SQLiteStore) DeleteOTP(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE email = ?`, email); err != nil {
		return fmt.Errorf("deleting otp code: %w", err)
	}
	return nil
}
