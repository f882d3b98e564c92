package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecretsKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type adminFixture struct {
	store  *fakeStore
	mail   *fakeMailer
	tokens *auth.TokenIssuer
	svc    *AdminService
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	sealer, err := auth.NewSealer(testSecretsKey)
	require.NoError(t, err)

	f := &adminFixture{
		store:  newFakeStore(),
		mail:   &fakeMailer{},
		tokens: auth.NewTokenIssuer("test-secret", "storefront"),
	}
	otp := fixedOTP(newFakeKV(), "777777")
	f.svc = NewAdminService(f.store, sealer, auth.NewBcrypt(bcrypt.MinCost), f.tokens, otp, f.mail, time.Hour)
	return f
}

func (f *adminFixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Init(context.Background(), InitAdminRequest{
		Username:            "owner",
		Password:            "hunter22",
		CompanyEmail:        "shop@example.com",
		CompanyAppPassword:  "app-pass",
		DeliveryAgentEmails: []string{"rider1@example.com", "rider2@example.com"},
		ServiceAreas:        []models.ServiceArea{kolkataArea},
	}))
}

var kolkataArea = models.ServiceArea{Label: "Kolkata", Latitude: 22.57, Longitude: 88.36, RadiusKm: 5}

func TestAdminInitSealsSecrets(t *testing.T) {
	f := newAdminFixture(t)
	f.init(t)

	stored := f.store.admin
	assert.NotEqual(t, "owner", stored.Username)
	assert.NotEqual(t, "shop@example.com", stored.CompanyEmail)
	assert.NotEqual(t, "app-pass", stored.CompanyAppPassword)
	for _, agent := range stored.DeliveryAgentEmails {
		assert.False(t, strings.Contains(agent, "@"))
	}
	assert.Len(t, stored.ServiceAreas, 1)

	err := f.svc.Init(context.Background(), InitAdminRequest{Username: "x", Password: "y"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAdminInitValidates(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	assert.True(t, apperr.Is(f.svc.Init(ctx, InitAdminRequest{Username: " ", Password: "p"}), apperr.KindValidation))
	assert.True(t, apperr.Is(f.svc.Init(ctx, InitAdminRequest{
		Username:     "u",
		Password:     "p",
		ServiceAreas: []models.ServiceArea{{Latitude: 95, Longitude: 0}},
	}), apperr.KindValidation))
}

func TestAdminLogin(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "owner", "hunter22")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	f.init(t)

	res, err := f.svc.Login(ctx, "owner", "hunter22")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	_, err = f.svc.Login(ctx, "owner", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = f.svc.Login(ctx, "intruder", "hunter22")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestAdminProfileMasksAppPassword(t *testing.T) {
	f := newAdminFixture(t)
	f.init(t)

	p, err := f.svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "owner", p.Username)
	assert.Equal(t, "shop@example.com", p.CompanyEmail)
	assert.Equal(t, "********", p.CompanyAppPassword)
	assert.Equal(t, []string{"rider1@example.com", "rider2@example.com"}, p.DeliveryAgentEmails)
}

func TestAdminResetCredentials(t *testing.T) {
	f := newAdminFixture(t)
	f.init(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendResetOTP(ctx))
	sent := f.mail.last()
	assert.Equal(t, []string{"shop@example.com"}, sent.to)
	assert.Equal(t, "777777", sent.data["Code"])

	err := f.svc.ResetCredentials(ctx, "000000", AdminCredentialsPatch{Password: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, f.svc.ResetCredentials(ctx, "777777", AdminCredentialsPatch{
		Password:            "newpass",
		DeliveryAgentEmails: []string{"rider3@example.com"},
	}))

	_, err = f.svc.Login(ctx, "owner", "newpass")
	assert.NoError(t, err)

	recipients, err := f.svc.OrderRecipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop@example.com", "rider3@example.com"}, recipients)

	// the code was consumed
	assert.Error(t, f.svc.ResetCredentials(ctx, "777777", AdminCredentialsPatch{Password: "again"}))
}

func TestAdminSendResetOTPNeedsCompanyEmail(t *testing.T) {
	f := newAdminFixture(t)
	require.NoError(t, f.svc.Init(context.Background(), InitAdminRequest{Username: "owner", Password: "pw"}))

	assert.True(t, apperr.Is(f.svc.SendResetOTP(context.Background()), apperr.KindValidation))
}

func TestAdminMailCredentials(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	_, ok, err := f.svc.MailCredentials(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f.init(t)
	creds, ok, err := f.svc.MailCredentials(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shop@example.com", creds.Username)
	assert.Equal(t, "app-pass", creds.Password)
}
