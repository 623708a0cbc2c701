package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/query"
	"github.com/nabil/devstash/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memItemRepo is an in-memory ItemRepository. listOrderedErr lets tests
// force the fallback path; calls counts the ordered listings so cache
// hits are observable.
type memItemRepo struct {
	mu             sync.Mutex
	items          map[string]model.Item
	seq            int
	listOrderedErr error
	orderedCalls   int
}

var _ repository.ItemRepository = (*memItemRepo)(nil)

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]model.Item)}
}

func (r *memItemRepo) Create(ctx context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	item.ID = fmt.Sprintf("item-%d", r.seq)
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.items[item.ID] = *item
	return nil
}

func (r *memItemRepo) GetByID(ctx context.Context, id string) (*model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, apperror.NotFound("item", id)
	}
	return &item, nil
}

func (r *memItemRepo) Update(ctx context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return apperror.NotFound("item", item.ID)
	}
	item.UserID = stored.UserID
	item.Kind = stored.Kind
	item.CreatedAt = stored.CreatedAt
	item.UpdatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

func (r *memItemRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperror.NotFound("item", id)
	}
	delete(r.items, id)
	return nil
}

func (r *memItemRepo) ListOrdered(ctx context.Context, filter repository.ItemFilter) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderedCalls++
	if r.listOrderedErr != nil {
		return nil, r.listOrderedErr
	}
	var out []model.Item
	for _, item := range r.items {
		if filter.Matches(&item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memItemRepo) ListUnordered(ctx context.Context, filter repository.ItemFilter, limit int) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Item
	for _, item := range r.items {
		if filter.Matches(&item) && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) ListByProjectValue(ctx context.Context, userID string, kind model.ItemKind, projectID *string, limit int) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Item
	for _, item := range r.items {
		if item.UserID != userID || item.Kind != kind || len(out) >= limit {
			continue
		}
		if projectID == nil {
			continue // nothing is stored as null here
		}
		if item.ProjectID == *projectID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) Restore(ctx context.Context, item *model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.UpdatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

// memProjectRepo is an in-memory ProjectRepository.
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]model.Project
	seq      int
}

var _ repository.ProjectRepository = (*memProjectRepo)(nil)

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[string]model.Project)}
}

func (r *memProjectRepo) Create(ctx context.Context, project *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	project.ID = fmt.Sprintf("proj-%d", r.seq)
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	r.projects[project.ID] = *project
	return nil
}

func (r *memProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	return &project, nil
}

func (r *memProjectRepo) Update(ctx context.Context, project *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; !ok {
		return apperror.NotFound("project", project.ID)
	}
	project.UpdatedAt = time.Now()
	r.projects[project.ID] = *project
	return nil
}

func (r *memProjectRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(r.projects, id)
	return nil
}

func (r *memProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Project
	for _, project := range r.projects {
		if project.UserID == userID {
			out = append(out, project)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memProjectRepo) Restore(ctx context.Context, project *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	project.UpdatedAt = time.Now()
	r.projects[project.ID] = *project
	return nil
}

// memUserRepo is an in-memory UserRepository with the email uniqueness
// rule.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]model.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// memBackupRepo is an in-memory BackupRepository.
type memBackupRepo struct {
	mu      sync.Mutex
	backups []model.Backup
	seq     int
}

var _ repository.BackupRepository = (*memBackupRepo)(nil)

func newMemBackupRepo() *memBackupRepo {
	return &memBackupRepo{}
}

func (r *memBackupRepo) Create(ctx context.Context, backup *model.Backup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	backup.ID = fmt.Sprintf("backup-%d", r.seq)
	r.backups = append([]model.Backup{*backup}, r.backups...)
	return nil
}

func (r *memBackupRepo) ListByUser(ctx context.Context, userID string) ([]model.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Backup
	for _, backup := range r.backups {
		if backup.UserID == userID {
			out = append(out, backup)
		}
	}
	return out, nil
}

// memBlobStore is an in-memory blob.Store.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, apperror.NotFound("file", key)
	}
	return data, nil
}

func (s *memBlobStore) URL(ctx context.Context, key string) (string, error) {
	return "/files/" + key, nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memBlobStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key := range s.objects {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func newTestItemService(t *testing.T, repo *memItemRepo) (*ItemService, *ItemCache) {
	t.Helper()
	itemCache := NewItemCache()
	lister := query.NewFallbackLister(repo, testLogger())
	return NewItemService(repo, lister, itemCache, testLogger()), itemCache
}

func containsID(items []model.Item, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func hasPrefixKey(keys []string, prefix string) bool {
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
