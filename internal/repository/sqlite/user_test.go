package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
)

func createTestUser(t *testing.T, repo *UserRepo, user model.User) *model.User {
	t.Helper()
	if user.ID == "" {
		user.ID = "uid-" + user.Email
	}
	if user.Role == "" {
		user.SetRole(model.RoleFree)
	}
	if user.Settings == (model.Settings{}) {
		user.Settings = model.DefaultSettings()
	}
	if err := repo.Create(context.Background(), &user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

func TestUserCreate_RoundTrip(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))

	created := createTestUser(t, repo, model.User{
		ID:          "subject-1",
		Email:       "nadia@example.com",
		DisplayName: "Nadia",
		ProfileURL:  "/files/profile-pics/subject-1",
	})

	found, err := repo.GetByID(context.Background(), "subject-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Email != "nadia@example.com" || found.DisplayName != "Nadia" {
		t.Errorf("Email/DisplayName = %q/%q", found.Email, found.DisplayName)
	}
	if found.Role != model.RoleFree || found.IsAdmin {
		t.Errorf("Role/IsAdmin = %q/%v, want free/false", found.Role, found.IsAdmin)
	}
	if found.Settings != model.DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", found.Settings)
	}
	if !found.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, created.CreatedAt)
	}
}

func TestUserCreate_DuplicateEmailConflicts(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	createTestUser(t, repo, model.User{Email: "dup@example.com"})

	err := repo.Create(context.Background(), &model.User{
		ID:       "someone-else",
		Email:    "dup@example.com",
		Role:     model.RoleFree,
		Settings: model.DefaultSettings(),
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	createTestUser(t, repo, model.User{Email: "find@example.com"})

	found, err := repo.GetByEmail(context.Background(), "find@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.Email != "find@example.com" {
		t.Errorf("Email = %q", found.Email)
	}

	if _, err := repo.GetByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate_PersistsRoleAndAdminFlagTogether(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := createTestUser(t, repo, model.User{Email: "promote@example.com"})

	user.SetRole(model.RoleAdmin)
	if err := repo.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Role != model.RoleAdmin || !found.IsAdmin {
		t.Errorf("Role/IsAdmin = %q/%v, want admin/true", found.Role, found.IsAdmin)
	}

	found.SetRole(model.RolePaid)
	if err := repo.Update(context.Background(), found); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	demoted, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if demoted.Role != model.RolePaid || demoted.IsAdmin {
		t.Errorf("Role/IsAdmin = %q/%v, want paid/false", demoted.Role, demoted.IsAdmin)
	}
}

func TestUserUpdate_PersistsPremiumGrant(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := createTestUser(t, repo, model.User{Email: "grant@example.com"})

	expiry := time.Now().Add(48 * time.Hour).UnixMilli()
	user.TemporaryPremiumAccess = true
	user.TemporaryPremiumExpiry = expiry
	if err := repo.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := repo.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !found.TemporaryPremiumAccess || found.TemporaryPremiumExpiry != expiry {
		t.Errorf("premium grant = %v/%d, want true/%d",
			found.TemporaryPremiumAccess, found.TemporaryPremiumExpiry, expiry)
	}
	if !found.HasPremiumAccess(time.Now()) {
		t.Error("HasPremiumAccess() = false for an unexpired grant")
	}
}

func TestUserDelete(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	user := createTestUser(t, repo, model.User{Email: "gone@example.com"})

	if err := repo.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second delete: error = %v, want ErrNotFound", err)
	}
}

func TestUserList_NewestFirst(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	createTestUser(t, repo, model.User{Email: "first@example.com"})
	time.Sleep(5 * time.Millisecond)
	createTestUser(t, repo, model.User{Email: "second@example.com"})

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].Email != "second@example.com" {
		t.Errorf("order = [%s, %s], want newest first", users[0].Email, users[1].Email)
	}
}
