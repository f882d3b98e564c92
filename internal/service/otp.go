package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/util"
)

// OTP purposes
const (
	PurposeSignup     = "signup"
	PurposeReset      = "reset"
	PurposeAdminReset = "admin_reset"
)

var otpUpperBound = big.NewInt(1_000_000)

// OTPManager issues one-time passwords into a TTL store. A verified code is
// replaced by a marker that a later step consumes.
type OTPManager struct {
	kv       KeyValueStore
	ttl      time.Duration
	generate func() (string, error)
}

func NewOTPManager(kv KeyValueStore, ttl time.Duration) *OTPManager {
	return &OTPManager{kv: kv, ttl: ttl, generate: generateCode}
}

// TTL is how long an issued code stays valid.
func (m *OTPManager) TTL() time.Duration {
	return m.ttl
}

// Issue stores a fresh code for subject, replacing any earlier one.
func (m *OTPManager) Issue(ctx context.Context, purpose, subject string) (string, error) {
	code, err := m.generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	subject = normalizeSubject(subject)
	if err := m.kv.Del(ctx, verifiedKey(purpose, subject)); err != nil {
		return "", fmt.Errorf("failed to reset otp state: %w", err)
	}
	if err := m.kv.Set(ctx, otpKey(purpose, subject), code, m.ttl); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}

	util.OTPIssuedTotal.WithLabelValues(purpose).Inc()
	return code, nil
}

// Check compares code against the stored one and deletes it on success.
func (m *OTPManager) Check(ctx context.Context, purpose, subject, code string) error {
	subject = normalizeSubject(subject)
	key := otpKey(purpose, subject)

	stored, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load otp: %w", err)
	}
	if !ok || strings.TrimSpace(code) != stored {
		return apperr.Validation("invalid or expired OTP")
	}

	if err := m.kv.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	return nil
}

// Verify checks code and leaves a verified marker for Consume.
func (m *OTPManager) Verify(ctx context.Context, purpose, subject, code string) error {
	if err := m.Check(ctx, purpose, subject, code); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, verifiedKey(purpose, normalizeSubject(subject)), "1", m.ttl); err != nil {
		return fmt.Errorf("failed to store otp verification: %w", err)
	}
	return nil
}

// Consume requires and removes the verified marker.
func (m *OTPManager) Consume(ctx context.Context, purpose, subject string) error {
	key := verifiedKey(purpose, normalizeSubject(subject))

	_, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load otp verification: %w", err)
	}
	if !ok {
		return apperr.Validation("OTP verification required")
	}
	return m.kv.Del(ctx, key)
}

func otpKey(purpose, subject string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, subject)
}

func verifiedKey(purpose, subject string) string {
	return otpKey(purpose, subject) + ":verified"
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
