package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/auth"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
)

// fakeUsers is an in-memory UserStore mirroring the repository semantics:
// lookups honor the soft-delete flag and reset-token expiry.
type fakeUsers struct {
	users map[string]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	clone := *user
	f.users[user.ID.Hex()] = &clone
	return nil
}

func (f *fakeUsers) ByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email && u.Active {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) ByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || !u.Active {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) ByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	for _, u := range f.users {
		if u.Active && u.PasswordResetToken == tokenHash && u.PasswordResetExpires.After(now) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) SetPassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = passwordHash
	u.PasswordChangedAt = changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, id, tokenHash string, expires time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = expires
	return nil
}

func (f *fakeUsers) ClearResetToken(_ context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

type fakeMailer struct {
	to       []string
	lastText string
	fail     bool
}

func (m *fakeMailer) Send(to, subject, htmlBody, textBody string) error {
	if m.fail {
		return errors.New("smtp: connection refused")
	}
	m.to = append(m.to, to)
	m.lastText = textBody
	return nil
}

// lastResetToken pulls the raw token out of the reset URL in the last mail.
func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	idx := strings.LastIndex(m.lastText, "/")
	require.GreaterOrEqual(t, idx, 0, "no reset URL in mail body")
	return strings.TrimSpace(m.lastText[idx+1:])
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUsers, *fakeMailer, *time.Time) {
	t.Helper()
	store := newFakeUsers()
	mailer := &fakeMailer{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := NewAuthService(store, tokens, mailer)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, store, mailer, &clock
}

func seedUser(t *testing.T, svc *AuthService) *models.User {
	t.Helper()
	user, _, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice Doe",
		Email:    "alice@example.com",
		Password: "pass1234",
	}, "http://localhost/me")
	require.NoError(t, err)
	return user
}

func TestSignup(t *testing.T) {
	svc, store, mailer, _ := newTestAuthService(t)

	user, token, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice Doe",
		Email:    "Alice@Example.com",
		Password: "pass1234",
	}, "http://localhost/me")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, "alice@example.com", user.Email, "email is case-normalized")
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Empty(t, user.Password, "hash never leaves the service")
	assert.Equal(t, []string{"alice@example.com"}, mailer.to)

	stored := store.users[user.ID.Hex()]
	require.NotNil(t, stored)
	assert.NotEqual(t, "pass1234", stored.Password)
	assert.True(t, auth.VerifyPassword("pass1234", stored.Password))
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	seedUser(t, svc)

	_, _, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Other",
		Email:    "alice@example.com",
		Password: "pass1234",
	}, "http://localhost/me")

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func TestSignupRejectsShortPassword(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	_, _, err := svc.Signup(context.Background(), SignupInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "short",
	}, "http://localhost/me")

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	seedUser(t, svc)

	user, token, err := svc.Login(context.Background(), "alice@example.com", "pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Empty(t, user.Password)
}

func TestLoginSameErrorForBadEmailAndBadPassword(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	seedUser(t, svc)

	_, _, errBadPassword := svc.Login(context.Background(), "alice@example.com", "wrong-pass")
	_, _, errBadEmail := svc.Login(context.Background(), "nobody@example.com", "pass1234")

	for _, err := range []error{errBadPassword, errBadEmail} {
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, 401, appErr.Code)
		assert.Equal(t, "Incorrect email or password", appErr.Message)
	}
}

func TestForgotPasswordStoresHashOnly(t *testing.T) {
	svc, store, mailer, clock := newTestAuthService(t)
	user := seedUser(t, svc)

	err := svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/api/v1/users/resetPassword")
	require.NoError(t, err)

	raw := mailer.lastResetToken(t)
	stored := store.users[user.ID.Hex()]
	assert.NotEqual(t, raw, stored.PasswordResetToken)
	assert.Equal(t, auth.HashResetToken(raw), stored.PasswordResetToken)
	assert.Equal(t, clock.Add(auth.ResetTokenTTL), stored.PasswordResetExpires)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com", "http://localhost/reset")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.Code)
}

func TestForgotPasswordMailFailureRollsBack(t *testing.T) {
	svc, store, mailer, _ := newTestAuthService(t)
	user := seedUser(t, svc)
	mailer.fail = true

	err := svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/reset")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 500, appErr.Code)

	stored := store.users[user.ID.Hex()]
	assert.Empty(t, stored.PasswordResetToken, "reset state rolled back")
	assert.True(t, stored.PasswordResetExpires.IsZero())
}

func TestResetPassword(t *testing.T) {
	svc, store, mailer, _ := newTestAuthService(t)
	user := seedUser(t, svc)

	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/reset"))
	raw := mailer.lastResetToken(t)

	reset, token, err := svc.ResetPassword(context.Background(), raw, "new-pass-99")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, user.ID, reset.ID)

	stored := store.users[user.ID.Hex()]
	assert.True(t, auth.VerifyPassword("new-pass-99", stored.Password))
	assert.False(t, auth.VerifyPassword("pass1234", stored.Password))
	assert.Empty(t, stored.PasswordResetToken)
	assert.True(t, stored.PasswordResetExpires.IsZero())
	assert.False(t, stored.PasswordChangedAt.IsZero())
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, store, mailer, clock := newTestAuthService(t)
	user := seedUser(t, svc)

	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/reset"))
	raw := mailer.lastResetToken(t)

	*clock = clock.Add(auth.ResetTokenTTL + time.Minute)

	_, _, err := svc.ResetPassword(context.Background(), raw, "new-pass-99")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)

	stored := store.users[user.ID.Hex()]
	assert.True(t, auth.VerifyPassword("pass1234", stored.Password), "password unchanged")
}

func TestResetPasswordBogusToken(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	seedUser(t, svc)

	_, _, err := svc.ResetPassword(context.Background(), "deadbeef", "new-pass-99")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func TestSecondResetRequestInvalidatesFirst(t *testing.T) {
	svc, _, mailer, _ := newTestAuthService(t)
	seedUser(t, svc)

	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/reset"))
	firstRaw := mailer.lastResetToken(t)

	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost/reset"))
	secondRaw := mailer.lastResetToken(t)
	require.NotEqual(t, firstRaw, secondRaw)

	_, _, err := svc.ResetPassword(context.Background(), firstRaw, "new-pass-99")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code, "overwritten token must be rejected")

	_, _, err = svc.ResetPassword(context.Background(), secondRaw, "new-pass-99")
	assert.NoError(t, err, "latest token still valid")
}

func TestPasswordRotationInvalidatesOlderTokens(t *testing.T) {
	svc, store, _, clock := newTestAuthService(t)
	user := seedUser(t, svc)

	// A token issued now carries this iat; rotate the password two seconds
	// later and the staleness check must start failing.
	issuedAt := *clock

	*clock = clock.Add(2 * time.Second)
	_, _, err := svc.UpdatePassword(context.Background(), user.ID.Hex(), "pass1234", "rotated-pass")
	require.NoError(t, err)

	stored := store.users[user.ID.Hex()]
	assert.True(t, stored.ChangedPasswordAfter(issuedAt),
		"token issued before the rotation must now fail the staleness check")
	assert.False(t, stored.ChangedPasswordAfter(clock.Add(time.Minute)),
		"tokens issued after the rotation stay valid")
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	user := seedUser(t, svc)

	_, _, err := svc.UpdatePassword(context.Background(), user.ID.Hex(), "wrong-pass", "new-pass-99")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.Code)
}
