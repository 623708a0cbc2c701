package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/auth"
	"github.com/nabil/devstash/internal/model"
)

func newTestAuthService(t *testing.T) (*AuthService, *memUserRepo) {
	t.Helper()
	users := newMemUserRepo()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc := NewAuthService(users, auth.NewPasswordServiceForTest(4), tokens, testLogger())
	return svc, users
}

func TestSignUp_CreatesFreeProfileWithDefaults(t *testing.T) {
	svc, _ := newTestAuthService(t)

	user, token, err := svc.SignUp(context.Background(), "Nadia@Example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if user.Email != "nadia@example.com" {
		t.Errorf("Email = %q, want lowercased", user.Email)
	}
	if user.DisplayName != "nadia" {
		t.Errorf("DisplayName = %q, want derived from email", user.DisplayName)
	}
	if user.Role != model.RoleFree || user.IsAdmin {
		t.Errorf("Role/IsAdmin = %q/%v, want free/false", user.Role, user.IsAdmin)
	}
	if user.Settings != model.DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", user.Settings)
	}
	if token == "" {
		t.Error("SignUp() returned no session token")
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2hunter2" {
		t.Error("password was not hashed")
	}
}

func TestSignUp_RejectsBadInput(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "not-an-email", "hunter2hunter2", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("bad email: error = %v, want ErrValidation", err)
	}
	if _, _, err := svc.SignUp(ctx, "ok@example.com", "short", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("short password: error = %v, want ErrValidation", err)
	}
}

func TestSignUp_DuplicateEmailConflicts(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "dup@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	_, _, err := svc.SignUp(ctx, "dup@example.com", "hunter2hunter2", "")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestSignIn_RoundTrip(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	created, _, err := svc.SignUp(ctx, "login@example.com", "hunter2hunter2", "Login")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, token, err := svc.SignIn(ctx, "login@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("SignIn() returned a different user")
	}
	if token == "" {
		t.Error("SignIn() returned no session token")
	}
}

func TestSignIn_WrongPasswordAndUnknownEmailLookTheSame(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "known@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	_, _, errWrong := svc.SignIn(ctx, "known@example.com", "wrong-password")
	_, _, errGhost := svc.SignIn(ctx, "ghost@example.com", "whatever-pass")

	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errGhost, ErrInvalidCredentials) {
		t.Errorf("errors = %v / %v, want ErrInvalidCredentials for both", errWrong, errGhost)
	}
}

func TestPasswordReset_RoundTrip(t *testing.T) {
	svc, users := newTestAuthService(t)
	ctx := context.Background()

	created, _, err := svc.SignUp(ctx, "reset@example.com", "old-password-1", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	// The token normally travels by email; build one the same way the
	// service does.
	token, err := svc.tokens.GenerateReset(created.ID, ResetTokenTTL)
	if err != nil {
		t.Fatalf("GenerateReset() error = %v", err)
	}

	if err := svc.ResetPassword(ctx, token, "new-password-1"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "reset@example.com", "old-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still accepted after reset")
	}
	if _, _, err := svc.SignIn(ctx, "reset@example.com", "new-password-1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	stored, _ := users.GetByID(ctx, created.ID)
	if stored.PasswordHash == "" {
		t.Error("stored hash is empty after reset")
	}
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if err := svc.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Errorf("error = %v, want nil for unknown email", err)
	}
}

func TestResetPassword_RejectsBadToken(t *testing.T) {
	svc, _ := newTestAuthService(t)

	err := svc.ResetPassword(context.Background(), "garbage-token", "new-password-1")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestResetPassword_RejectsSessionToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, session, err := svc.SignUp(ctx, "crossed@example.com", "old-password-1", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	// A stolen session cookie must not double as a reset token.
	err = svc.ResetPassword(ctx, session, "new-password-1")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if _, _, err := svc.SignIn(ctx, "crossed@example.com", "old-password-1"); err != nil {
		t.Errorf("old password rejected after failed reset: %v", err)
	}
}

func TestLoginWithGitHub_FirstLoginRegisters(t *testing.T) {
	svc, users := newTestAuthService(t)
	ctx := context.Background()

	gh := &auth.GitHubUser{ID: 42, Login: "octo", Email: "octo@example.com", AvatarURL: "https://avatars/octo"}

	user, token, err := svc.LoginWithGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("LoginWithGitHub() error = %v", err)
	}
	if user.ID != "github:42" {
		t.Errorf("ID = %q, want the stable github subject", user.ID)
	}
	if user.Role != model.RoleFree {
		t.Errorf("Role = %q, want free", user.Role)
	}
	if token == "" {
		t.Error("no session token issued")
	}

	// Second login reuses the same profile.
	again, _, err := svc.LoginWithGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second LoginWithGitHub() error = %v", err)
	}
	if again.ID != user.ID {
		t.Error("second login created a different profile")
	}
	if all, _ := users.List(ctx); len(all) != 1 {
		t.Errorf("profiles = %d, want 1", len(all))
	}
}

func TestLoginWithGitHub_HiddenEmailGetsPlaceholder(t *testing.T) {
	svc, _ := newTestAuthService(t)

	user, _, err := svc.LoginWithGitHub(context.Background(),
		&auth.GitHubUser{ID: 7, Login: "Private"})
	if err != nil {
		t.Fatalf("LoginWithGitHub() error = %v", err)
	}
	if user.Email != "private@users.noreply.github.com" {
		t.Errorf("Email = %q", user.Email)
	}
}
