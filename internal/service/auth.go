package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/xid"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/auth"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

const (
	MinPasswordLength = 8
	ResetTokenTTL     = 15 * time.Minute
)

// ErrInvalidCredentials is returned for any sign-in failure. It is
// deliberately vague: the response never reveals whether the email
// exists.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService handles account creation, sign-in, password reset, and
// the GitHub login flow.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users repository.UserRepository, passwords *auth.PasswordService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// SignUp creates a new account with the free role and default settings,
// and returns the profile together with a session token.
func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, "", apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		ID:           xid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Settings:     model.DefaultSettings(),
	}
	user.SetRole(model.RoleFree)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("userId", user.ID),
		slog.String("email", user.Email),
	)
	return user, token, nil
}

// SignIn verifies the credentials and returns the profile with a fresh
// session token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if user.PasswordHash == "" {
		// OAuth-only account; there is no password to check.
		return nil, "", ErrInvalidCredentials
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("user signed in", slog.String("userId", user.ID))
	return user, token, nil
}

// RequestPasswordReset issues a short-lived reset token for the
// account. The token would normally travel by email; it is logged
// instead because no mail delivery is wired up. Unknown emails return
// success so the endpoint cannot be used to probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.tokens.GenerateReset(user.ID, ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("issuing reset token: %w", err)
	}

	// TODO: deliver by email once an SMTP sender is configured.
	s.logger.Info("password reset requested",
		slog.String("userId", user.ID),
		slog.String("resetToken", token),
	)
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		return apperror.ValidationFailed("token", "reset token is invalid or expired")
	}
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}
	user.PasswordHash = hash

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("password reset completed", slog.String("userId", user.ID))
	return nil
}

// LoginWithGitHub signs a GitHub account in, creating the profile on
// first login. The stable GitHub numeric ID becomes the identity
// subject, so renamed GitHub accounts keep their data.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, string, error) {
	id := fmt.Sprintf("github:%d", gh.ID)

	user, err := s.users.GetByID(ctx, id)
	switch {
	case err == nil:
		// Existing account; refresh the avatar in case it changed.
		if gh.AvatarURL != "" && user.ProfileURL != gh.AvatarURL {
			user.ProfileURL = gh.AvatarURL
			if err := s.users.Update(ctx, user); err != nil {
				return nil, "", err
			}
		}
	case errors.Is(err, apperror.ErrNotFound):
		email := strings.ToLower(gh.Email)
		if email == "" {
			// GitHub hides the email when the user opts out.
			email = fmt.Sprintf("%s@users.noreply.github.com", strings.ToLower(gh.Login))
		}
		user = &model.User{
			ID:          id,
			Email:       email,
			DisplayName: gh.Login,
			ProfileURL:  gh.AvatarURL,
			Settings:    model.DefaultSettings(),
		}
		user.SetRole(model.RoleFree)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, "", err
		}
		s.logger.Info("github account registered", slog.String("userId", id))
	default:
		return nil, "", err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}

	return user, token, nil
}
