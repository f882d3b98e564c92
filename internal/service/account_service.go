package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/mailer"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const minPasswordLength = 6

// AuthResult is an issued access token.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user,omitempty"`
}

// RegisterRequest creates a customer account after signup OTP verification.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AccountService handles customer signup, login and password reset.
type AccountService struct {
	users    UserRepository
	otp      *OTPManager
	mailer   Mailer
	hasher   *auth.Bcrypt
	tokens   *auth.TokenIssuer
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewAccountService(
	users UserRepository,
	otp *OTPManager,
	mailer Mailer,
	hasher *auth.Bcrypt,
	tokens *auth.TokenIssuer,
	tokenTTL time.Duration,
) *AccountService {
	return &AccountService{
		users:    users,
		otp:      otp,
		mailer:   mailer,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   util.ComponentLogger("account"),
	}
}

// SendSignupOTP mails a signup code to an email that is not yet registered.
func (s *AccountService) SendSignupOTP(ctx context.Context, email string) error {
	ctx, span := util.StartSpan(ctx, "AccountService.SendSignupOTP")
	defer span.End()

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict("email already registered")
	case !errors.Is(err, store.ErrNotFound):
		return util.RecordError(span, translate(err, "user"))
	}

	return util.RecordError(span, s.sendCode(ctx, PurposeSignup, email, "Verify your email", "complete your signup"))
}

// VerifySignupOTP accepts the signup code for email.
func (s *AccountService) VerifySignupOTP(ctx context.Context, email, code string) error {
	return s.otp.Verify(ctx, PurposeSignup, email, code)
}

// Register creates the account. The email must have passed VerifySignupOTP.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Register")
	defer span.End()

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	if err := s.otp.Consume(ctx, PurposeSignup, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, util.RecordError(span, translate(err, "user"))
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return s.issue(user)
}

// Login checks customer credentials and returns a user token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := util.StartSpan(ctx, "AccountService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, normalizeSubject(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, util.RecordError(span, translate(err, "user"))
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	return s.issue(user)
}

// ForgotPassword mails a reset code to a registered email.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := util.StartSpan(ctx, "AccountService.ForgotPassword")
	defer span.End()

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		return translate(err, "user")
	}

	return util.RecordError(span, s.sendCode(ctx, PurposeReset, email, "Reset your password", "reset your password"))
}

// VerifyResetOTP accepts the reset code for email.
func (s *AccountService) VerifyResetOTP(ctx context.Context, email, code string) error {
	return s.otp.Verify(ctx, PurposeReset, email, code)
}

// ResetPassword sets a new password once VerifyResetOTP succeeded.
func (s *AccountService) ResetPassword(ctx context.Context, email, newPassword string) error {
	ctx, span := util.StartSpan(ctx, "AccountService.ResetPassword")
	defer span.End()

	if len(newPassword) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	email = normalizeSubject(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return translate(err, "user")
	}
	if err := s.otp.Consume(ctx, PurposeReset, email); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return util.RecordError(span, err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return util.RecordError(span, translate(err, "user"))
	}

	s.logger.Info("Password reset", zap.Int64("user_id", user.ID))
	return nil
}

// Profile returns the customer account.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Sign(user.ID, auth.RoleUser, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AccountService) sendCode(ctx context.Context, purpose, email, title, action string) error {
	code, err := s.otp.Issue(ctx, purpose, email)
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, []string{email}, title, mailer.TemplateOTP, map[string]any{
		"Title":      title,
		"Action":     action,
		"Code":       code,
		"TTLMinutes": int(s.otp.TTL().Minutes()),
	})
	if err != nil {
		return apperr.ExternalService(err, "failed to send OTP")
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = normalizeSubject(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}
