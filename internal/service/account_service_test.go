package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type accountFixture struct {
	store  *fakeStore
	mail   *fakeMailer
	tokens *auth.TokenIssuer
	svc    *AccountService
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		store:  newFakeStore(),
		mail:   &fakeMailer{},
		tokens: auth.NewTokenIssuer("test-secret", "storefront"),
	}
	otp := fixedOTP(newFakeKV(), "424242")
	f.svc = NewAccountService(f.store, otp, f.mail, auth.NewBcrypt(bcrypt.MinCost), f.tokens, time.Hour)
	return f
}

func (f *accountFixture) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.SendSignupOTP(ctx, email))
	require.NoError(t, f.svc.VerifySignupOTP(ctx, email, "424242"))
	res, err := f.svc.Register(ctx, RegisterRequest{Name: "Asha", Email: email, Password: password})
	require.NoError(t, err)
	return res
}

func TestSignupFlow(t *testing.T) {
	f := newAccountFixture()

	res := f.register(t, "Asha@Example.com", "secret1")

	sent := f.mail.last()
	assert.Equal(t, []string{"asha@example.com"}, sent.to)
	assert.Equal(t, mailer.TemplateOTP, sent.template)
	assert.Equal(t, "424242", sent.data["Code"])
	assert.Equal(t, 10, sent.data["TTLMinutes"])

	require.NotEmpty(t, res.Token)
	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.SubjectID)
	assert.Equal(t, auth.RoleUser, claims.Role)
	assert.Equal(t, "asha@example.com", res.User.Email)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)
}

func TestRegisterRequiresVerifiedOTP(t *testing.T) {
	f := newAccountFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.SendSignupOTP(ctx, "a@b.co"))
	_, err := f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.co", Password: "abc"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSendSignupOTPRejectsRegisteredEmail(t *testing.T) {
	f := newAccountFixture()
	f.register(t, "a@b.co", "secret1")

	err := f.svc.SendSignupOTP(context.Background(), "A@B.co")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = f.svc.SendSignupOTP(context.Background(), "not-an-email")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSendSignupOTPMailFailure(t *testing.T) {
	f := newAccountFixture()
	f.mail.fail = map[string]error{mailer.TemplateOTP: errors.New("smtp down")}

	err := f.svc.SendSignupOTP(context.Background(), "a@b.co")
	assert.True(t, apperr.Is(err, apperr.KindExternalService))
}

func TestLogin(t *testing.T) {
	f := newAccountFixture()
	f.register(t, "a@b.co", "secret1")
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "A@b.co", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = f.svc.Login(ctx, "a@b.co", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = f.svc.Login(ctx, "nobody@b.co", "secret1")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestPasswordReset(t *testing.T) {
	f := newAccountFixture()
	f.register(t, "a@b.co", "secret1")
	ctx := context.Background()

	assert.True(t, apperr.Is(f.svc.ForgotPassword(ctx, "ghost@b.co"), apperr.KindNotFound))

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.co"))
	assert.True(t, apperr.Is(f.svc.ResetPassword(ctx, "a@b.co", "newpass1"), apperr.KindValidation))

	require.NoError(t, f.svc.VerifyResetOTP(ctx, "a@b.co", "424242"))
	require.NoError(t, f.svc.ResetPassword(ctx, "a@b.co", "newpass1"))

	_, err := f.svc.Login(ctx, "a@b.co", "secret1")
	assert.Error(t, err)
	_, err = f.svc.Login(ctx, "a@b.co", "newpass1")
	assert.NoError(t, err)
}

func TestProfile(t *testing.T) {
	f := newAccountFixture()
	res := f.register(t, "a@b.co", "secret1")

	user, err := f.svc.Profile(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)

	_, err = f.svc.Profile(context.Background(), 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
