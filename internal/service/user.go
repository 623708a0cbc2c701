package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/blob"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

const (
	MaxDisplayNameLength  = 100
	MaxProfilePictureSize = 5 << 20 // 5 MiB

	minFontSize = 8
	maxFontSize = 32
)

var allowedThemes = []any{"light", "dark"}

// UserService covers the self-service profile surface and the admin
// user management surface.
type UserService struct {
	users  repository.UserRepository
	files  blob.Store
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, files blob.Store, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		files:  files,
		logger: logger,
	}
}

// Get returns one profile.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile changes the user's own display name and settings.
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName string, settings model.Settings) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validation.Validate(displayName, validation.Required, validation.Length(1, MaxDisplayNameLength)); err != nil {
		return nil, apperror.ValidationFailed("displayName", err.Error())
	}
	if err := validation.Validate(settings.Theme, validation.Required, validation.In(allowedThemes...)); err != nil {
		return nil, apperror.ValidationFailed("theme", "theme must be light or dark")
	}
	if settings.FontSize < minFontSize || settings.FontSize > maxFontSize {
		return nil, apperror.ValidationFailed("fontSize",
			fmt.Sprintf("font size must be between %d and %d", minFontSize, maxFontSize))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName
	user.Settings = settings

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userId", userID))
	return user, nil
}

// SetProfilePicture stores the uploaded image and points the profile at
// it. One object per user; a new upload replaces the old picture.
func (s *UserService) SetProfilePicture(ctx context.Context, userID string, data []byte) (*model.User, error) {
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "an image file is required")
	}
	if len(data) > MaxProfilePictureSize {
		return nil, apperror.ValidationFailed("file", "image must be 5 MB or smaller")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperror.ValidationFailed("file", "file must be an image")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := "profile-pics/" + userID
	if err := s.files.Put(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("storing profile picture: %w", err)
	}

	url, err := s.files.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolving profile picture url: %w", err)
	}
	user.ProfileURL = url

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile picture updated", slog.String("userId", userID))
	return user, nil
}

// List returns every profile. Admin surface.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// SetRole changes a user's role. The admin flag follows the role
// through model.SetRole, never independently.
func (s *UserService) SetRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "unknown role")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.SetRole(role)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("role changed",
		slog.String("userId", id),
		slog.String("role", string(role)),
	)
	return user, nil
}

// GrantTemporaryPremium gives a free account premium features until the
// expiry. A zero expiry revokes the grant.
func (s *UserService) GrantTemporaryPremium(ctx context.Context, id string, until time.Time) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if until.IsZero() {
		user.TemporaryPremiumAccess = false
		user.TemporaryPremiumExpiry = 0
	} else {
		if until.Before(time.Now()) {
			return nil, apperror.ValidationFailed("expiry", "expiry must be in the future")
		}
		user.TemporaryPremiumAccess = true
		user.TemporaryPremiumExpiry = until.UnixMilli()
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("temporary premium grant changed",
		slog.String("userId", id),
		slog.Bool("active", user.TemporaryPremiumAccess),
	)
	return user, nil
}

// Delete removes an account. Admin surface.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("userId", id))
	return nil
}
