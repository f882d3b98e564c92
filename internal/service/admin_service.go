package service

import (
	"context"
	"errors"
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

const (
	adminOTPSubject = "admin"
	maskedSecret    = "********"
)

// InitAdminRequest creates the singleton admin account.
type InitAdminRequest struct {
	Username            string               `json:"username" binding:"required"`
	Password            string               `json:"password" binding:"required"`
	CompanyEmail        string               `json:"companyEmail"`
	CompanyAppPassword  string               `json:"companyEmailAppPassword"`
	DeliveryAgentEmails []string             `json:"deliveryAgentEmails"`
	ServiceAreas        []models.ServiceArea `json:"deliverableAreas"`
}

// AdminCredentialsPatch replaces every non-empty field.
type AdminCredentialsPatch struct {
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	CompanyEmail        string   `json:"companyEmail"`
	CompanyAppPassword  string   `json:"companyEmailAppPassword"`
	DeliveryAgentEmails []string `json:"deliveryAgentEmails"`
}

// AdminProfile is the decrypted admin account as shown to the admin.
type AdminProfile struct {
	Username            string               `json:"username"`
	CompanyEmail        string               `json:"companyEmail"`
	CompanyAppPassword  string               `json:"companyEmailAppPassword"`
	DeliveryAgentEmails []string             `json:"deliveryAgentEmails"`
	ServiceAreas        []models.ServiceArea `json:"deliverableAreas"`
}

// AdminService manages the singleton admin account. Identity and mailbox
// fields are sealed at rest.
type AdminService struct {
	settings SettingsRepository
	sealer   *auth.Sealer
	hasher   *auth.Bcrypt
	tokens   *auth.TokenIssuer
	otp      *OTPManager
	mailer   Mailer
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewAdminService(
	settings SettingsRepository,
	sealer *auth.Sealer,
	hasher *auth.Bcrypt,
	tokens *auth.TokenIssuer,
	otp *OTPManager,
	mailer Mailer,
	tokenTTL time.Duration,
) *AdminService {
	return &AdminService{
		settings: settings,
		sealer:   sealer,
		hasher:   hasher,
		tokens:   tokens,
		otp:      otp,
		mailer:   mailer,
		tokenTTL: tokenTTL,
		logger:   util.ComponentLogger("admin"),
	}
}

// Init creates the admin account. It is a Conflict once an admin exists.
func (s *AdminService) Init(ctx context.Context, req InitAdminRequest) error {
	ctx, span := util.StartSpan(ctx, "AdminService.Init")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return apperr.Validation("username and password required")
	}
	for _, area := range req.ServiceAreas {
		if err := validateArea(area); err != nil {
			return err
		}
	}

	settings := &models.AdminSettings{ServiceAreas: req.ServiceAreas}
	if err := s.sealInto(settings, username, req.CompanyEmail, req.CompanyAppPassword, req.DeliveryAgentEmails); err != nil {
		return util.RecordError(span, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return util.RecordError(span, err)
	}
	settings.PasswordHash = hash

	if err := s.settings.CreateAdminSettings(ctx, settings); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("admin already initialized")
		}
		return util.RecordError(span, translate(err, "admin settings"))
	}

	s.logger.Info("Admin initialized", zap.Int("service_areas", len(req.ServiceAreas)))
	return nil
}

// Login checks admin credentials and returns an admin token.
func (s *AdminService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Login")
	defer span.End()

	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, util.RecordError(span, translate(err, "admin settings"))
	}

	stored, err := s.sealer.Open(settings.Username)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	if stored != strings.TrimSpace(username) || !s.hasher.Compare(settings.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.Sign(settings.ID, auth.RoleAdmin, s.tokenTTL)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Profile returns the decrypted admin account with the app password masked.
func (s *AdminService) Profile(ctx context.Context) (*AdminProfile, error) {
	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		return nil, translate(err, "admin settings")
	}

	username, err := s.sealer.Open(settings.Username)
	if err != nil {
		return nil, err
	}
	email, err := s.sealer.Open(settings.CompanyEmail)
	if err != nil {
		return nil, err
	}
	agents, err := s.sealer.OpenAll(settings.DeliveryAgentEmails)
	if err != nil {
		return nil, err
	}

	profile := &AdminProfile{
		Username:            username,
		CompanyEmail:        email,
		DeliveryAgentEmails: agents,
		ServiceAreas:        settings.ServiceAreas,
	}
	if settings.CompanyAppPassword != "" {
		profile.CompanyAppPassword = maskedSecret
	}
	return profile, nil
}

// SendResetOTP mails a credentials reset code to the company mailbox.
func (s *AdminService) SendResetOTP(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "AdminService.SendResetOTP")
	defer span.End()

	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		return translate(err, "admin settings")
	}
	email, err := s.sealer.Open(settings.CompanyEmail)
	if err != nil {
		return util.RecordError(span, err)
	}
	if email == "" {
		return apperr.Validation("company email not configured")
	}

	code, err := s.otp.Issue(ctx, PurposeAdminReset, adminOTPSubject)
	if err != nil {
		return util.RecordError(span, err)
	}

	title := "Admin credentials reset"
	err = s.mailer.Send(ctx, []string{email}, title, mailer.TemplateOTP, map[string]any{
		"Title":      title,
		"Action":     "reset your admin credentials",
		"Code":       code,
		"TTLMinutes": int(s.otp.TTL().Minutes()),
	})
	if err != nil {
		return util.RecordError(span, apperr.ExternalService(err, "failed to send OTP"))
	}
	return nil
}

// ResetCredentials applies patch after checking the admin reset code.
func (s *AdminService) ResetCredentials(ctx context.Context, code string, patch AdminCredentialsPatch) error {
	ctx, span := util.StartSpan(ctx, "AdminService.ResetCredentials")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return apperr.Validation("OTP required")
	}

	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		return translate(err, "admin settings")
	}
	if err := s.otp.Check(ctx, PurposeAdminReset, adminOTPSubject, code); err != nil {
		return err
	}

	if v := strings.TrimSpace(patch.Username); v != "" {
		if settings.Username, err = s.sealer.Seal(v); err != nil {
			return util.RecordError(span, err)
		}
	}
	if patch.Password != "" {
		if settings.PasswordHash, err = s.hasher.Hash(patch.Password); err != nil {
			return util.RecordError(span, err)
		}
	}
	if v := strings.TrimSpace(patch.CompanyEmail); v != "" {
		if settings.CompanyEmail, err = s.sealer.Seal(v); err != nil {
			return util.RecordError(span, err)
		}
	}
	if patch.CompanyAppPassword != "" {
		if settings.CompanyAppPassword, err = s.sealer.Seal(patch.CompanyAppPassword); err != nil {
			return util.RecordError(span, err)
		}
	}
	if patch.DeliveryAgentEmails != nil {
		sealed, err := s.sealer.SealAll(patch.DeliveryAgentEmails)
		if err != nil {
			return util.RecordError(span, err)
		}
		settings.DeliveryAgentEmails = sealed
	}

	if err := s.settings.UpdateAdminCredentials(ctx, settings); err != nil {
		return util.RecordError(span, translate(err, "admin settings"))
	}

	s.logger.Info("Admin credentials reset")
	return nil
}

// MailCredentials lets the mailer log in as the company mailbox when both
// the address and its app password are configured.
func (s *AdminService) MailCredentials(ctx context.Context) (mailer.Credentials, bool, error) {
	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mailer.Credentials{}, false, nil
		}
		return mailer.Credentials{}, false, err
	}

	email, err := s.sealer.Open(settings.CompanyEmail)
	if err != nil {
		return mailer.Credentials{}, false, err
	}
	password, err := s.sealer.Open(settings.CompanyAppPassword)
	if err != nil {
		return mailer.Credentials{}, false, err
	}
	if email == "" || password == "" {
		return mailer.Credentials{}, false, nil
	}
	return mailer.Credentials{Username: email, Password: password}, true, nil
}

// OrderRecipients returns the company mailbox followed by the delivery agents.
func (s *AdminService) OrderRecipients(ctx context.Context) ([]string, error) {
	settings, err := s.settings.GetAdminSettings(ctx)
	if err != nil {
		return nil, translate(err, "admin settings")
	}

	email, err := s.sealer.Open(settings.CompanyEmail)
	if err != nil {
		return nil, err
	}
	agents, err := s.sealer.OpenAll(settings.DeliveryAgentEmails)
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(agents)+1)
	if email != "" {
		recipients = append(recipients, email)
	}
	for _, a := range agents {
		if a != "" {
			recipients = append(recipients, a)
		}
	}
	return recipients, nil
}

func (s *AdminService) sealInto(settings *models.AdminSettings, username, email, appPassword string, agents []string) error {
	var err error
	if settings.Username, err = s.sealer.Seal(username); err != nil {
		return err
	}
	if settings.CompanyEmail, err = s.sealer.Seal(strings.TrimSpace(email)); err != nil {
		return err
	}
	if settings.CompanyAppPassword, err = s.sealer.Seal(appPassword); err != nil {
		return err
	}
	sealed, err := s.sealer.SealAll(agents)
	if err != nil {
		return err
	}
	settings.DeliveryAgentEmails = sealed
	return nil
}
