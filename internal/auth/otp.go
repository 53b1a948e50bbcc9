// ABOUTME: One-time code sign-in service with per-email rate limiting
// ABOUTME: Issues bcrypt-hashed codes and redeems them for session principals

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/lanternhq/lantern/internal/metrics"
	"github.com/lanternhq/lantern/internal/store"
)

// OTP errors
var (
	ErrRateLimited = errors.New("too many code requests")
	ErrInvalidCode = errors.New("invalid or expired code")
)

const (
	otpCodeLength = 6
	otpDigits     = "0123456789"
)

// OTPStore defines what the service needs from storage
type OTPStore interface {
	SaveOTP(ctx context.Context, code *store.OTPCode) error
	GetOTP(ctx context.Context, email string) (*store.OTPCode, error)
	DeleteOTP(ctx context.Context, email string) error
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// CodeSender delivers a one-time code to an address. Email delivery is an
// external collaborator; the default sender only logs that a code went out.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogSender is a CodeSender for local development that logs instead of
// delivering. The code itself is never logged.
type LogSender struct {
	Logger *slog.Logger
}

// SendCode logs the delivery without revealing the code
func (s *LogSender) SendCode(ctx context.Context, email, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("OTP code issued", "email", email)
	return nil
}

// OTPService issues and redeems one-time sign-in codes. Each address gets a
// token-bucket limiter so a stolen email list cannot flood the delivery
// channel.
type OTPService struct {
	store   OTPStore
	sender  CodeSender
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewOTPService creates an OTP service. Pass nil logger for default.
func NewOTPService(otpStore OTPStore, sender CodeSender, ttl time.Duration, collector *metrics.Collector, logger *slog.Logger) *OTPService {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = &LogSender{Logger: logger}
	}
	return &OTPService{
		store:    otpStore,
		sender:   sender,
		ttl:      ttl,
		metrics:  collector,
		logger:   logger.With("component", "otp"),
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute), // one code per minute per address
		burst:    3,
	}
}

// Issue generates a fresh code for the address, stores its hash, and hands the
// plaintext to the sender. Returns ErrRateLimited when the address has asked
// too often.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	if !s.allow(email) {
		return ErrRateLimited
	}

	code, err := generateCode(otpCodeLength)
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing code: %w", err)
	}

	now := time.Now().UTC()
	if err := s.store.SaveOTP(ctx, &store.OTPCode{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}

	if err := s.sender.SendCode(ctx, email, code); err != nil {
		// The stored hash stays valid; a retry of Issue replaces it
		return fmt.Errorf("sending code: %w", err)
	}

	s.metrics.RecordOTPIssued()
	s.logger.Debug("otp issued", "email", email)
	return nil
}

// Redeem verifies the code for the address and returns the principal for the
// matching user. The code is consumed on success. All failure modes collapse
// to ErrInvalidCode so the caller cannot probe which addresses exist.
func (s *OTPService) Redeem(ctx context.Context, email, code string) (*Principal, error) {
	stored, err := s.store.GetOTP(ctx, email)
	if err != nil {
		return nil, ErrInvalidCode
	}

	if bcrypt.CompareHashAndPassword(stored.CodeHash, []byte(code)) != nil {
		return nil, ErrInvalidCode
	}

	// Consume before minting: a failure here leaves the code unusable, which
	// is the safe direction.
	if err := s.store.DeleteOTP(ctx, email); err != nil {
		s.logger.Error("failed to consume otp", "email", email, "error", err)
		return nil, ErrInvalidCode
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCode
	}

	s.metrics.RecordOTPRedeemed()
	s.logger.Info("otp redeemed", "email", email, "user_id", user.ID)
	return &Principal{
		ID:       user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TenantID: user.TenantID,
	}, nil
}

// allow checks the per-address limiter, creating it on first use
func (s *OTPService) allow(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters[email]
	if !ok {
		lim = rate.NewLimiter(s.limit, s.burst)
		s.limiters[email] = lim
	}
	return lim.Allow()
}

// generateCode returns a random numeric code of the given length
func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(otpDigits)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = otpDigits[n.Int64()]
	}
	return string(buf), nil
}
