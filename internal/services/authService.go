package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/auth"
	"github.com/wanderly/tours-api/internal/mail"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
)

// UserStore is what the auth flows need from persistence. Implemented by
// repository.Users; faked in tests.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
	ByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	SetPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
}

type SignupInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthService owns signup, login, the password-reset flow and password
// updates. Session state lives entirely in the JWT; the only server-side
// auth state is the hashed reset token.
type AuthService struct {
	users    UserStore
	tokens   *auth.TokenManager
	mailer   mail.Mailer
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(users UserStore, tokens *auth.TokenManager, mailer mail.Mailer) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		mailer:   mailer,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput, accountURL string) (*models.User, string, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, "", apperror.BadRequest(err.Error())
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	// Role is never taken from the request; privileged roles are assigned
	// by an admin through the user routes.
	user := &models.User{
		Name:      in.Name,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      models.RoleUser,
		Password:  passwordHash,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", apperror.BadRequest("email already in use")
		}
		return nil, "", err
	}

	// Welcome mail is best effort; a broken relay must not block signup.
	subject, htmlBody, textBody := mail.Welcome(user.Name, accountURL)
	if err := s.mailer.Send(user.Email, subject, htmlBody, textBody); err != nil {
		log.Printf("welcome email to %s failed: %v", user.Email, err)
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", apperror.BadRequest("Please provide email and password")
	}

	user, err := s.users.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		// Same error as a wrong password; do not reveal which one it was.
		return nil, "", apperror.Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return nil, "", err
	}
	if !auth.VerifyPassword(password, user.Password) {
		return nil, "", apperror.Unauthorized("Incorrect email or password")
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

// ForgotPassword stores the hash of a fresh one-time token and mails the raw
// token. A second request overwrites the first token. If the mail cannot be
// sent the stored state is rolled back so no unusable token lingers.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	user, err := s.users.ByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	userID := user.ID.Hex()
	if err := s.users.SetResetToken(ctx, userID, hash, s.now().Add(auth.ResetTokenTTL)); err != nil {
		return err
	}

	subject, htmlBody, textBody := mail.PasswordReset(user.Name, resetURLBase+"/"+raw)
	if err := s.mailer.Send(user.Email, subject, htmlBody, textBody); err != nil {
		if clearErr := s.users.ClearResetToken(ctx, userID); clearErr != nil {
			log.Printf("rollback of reset token for %s failed: %v", userID, clearErr)
		}
		return apperror.Internal("There was an error sending the email. Try again later!")
	}
	return nil
}

// ResetPassword completes the flow: it only succeeds while the stored hash
// matches and the expiry is in the future, then rotates the password and
// logs the user straight in.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*models.User, string, error) {
	if len(newPassword) < 8 {
		return nil, "", apperror.BadRequest("Password must be at least 8 characters")
	}

	user, err := s.users.ByResetToken(ctx, auth.HashResetToken(rawToken), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperror.BadRequest("Token is invalid or has expired")
	}
	if err != nil {
		return nil, "", err
	}

	if err := s.rotatePassword(ctx, user, newPassword); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

// UpdatePassword is the logged-in variant: it demands the current password
// before rotating to the new one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (*models.User, string, error) {
	user, err := s.users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperror.Unauthorized("The user belonging to this token does no longer exist.")
	}
	if err != nil {
		return nil, "", err
	}
	if !auth.VerifyPassword(currentPassword, user.Password) {
		return nil, "", apperror.Unauthorized("Your current password is wrong")
	}
	if len(newPassword) < 8 {
		return nil, "", apperror.BadRequest("Password must be at least 8 characters")
	}

	if err := s.rotatePassword(ctx, user, newPassword); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, token, nil
}

// rotatePassword hashes and stores the new password. passwordChangedAt is
// backdated one second so a token issued in the same second as the rotation
// still fails the staleness check.
func (s *AuthService) rotatePassword(ctx context.Context, user *models.User, newPassword string) error {
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	changedAt := s.now().Add(-time.Second)
	if err := s.users.SetPassword(ctx, user.ID.Hex(), passwordHash, changedAt); err != nil {
		return err
	}
	user.Password = passwordHash
	user.PasswordChangedAt = changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = time.Time{}
	return nil
}
