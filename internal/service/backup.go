package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/blob"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

// Archive is the backup file format: one JSON document holding the
// user's full dataset. The three collection keys are always present,
// even when empty, and import requires them.
type Archive struct {
	Snippets   []model.Item    `json:"snippets"`
	Notes      []model.Item    `json:"notes"`
	Checklists []model.Item    `json:"checklists"`
	Projects   []model.Project `json:"projects"`
	Profile    *model.User     `json:"profile,omitempty"`
	ExportedAt time.Time       `json:"exportedAt"`
}

// ImportResult summarizes what a restore did.
type ImportResult struct {
	Items    int `json:"items"`
	Projects int `json:"projects"`
	Skipped  int `json:"skipped"`
}

// BackupService exports a user's data to the blob store and restores it
// from an uploaded archive.
type BackupService struct {
	items     repository.ItemRepository
	projects  repository.ProjectRepository
	users     repository.UserRepository
	backups   repository.BackupRepository
	files     blob.Store
	itemCache *ItemCache
	logger    *slog.Logger
}

// NewBackupService creates a BackupService.
func NewBackupService(
	items repository.ItemRepository,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	backups repository.BackupRepository,
	files blob.Store,
	itemCache *ItemCache,
	logger *slog.Logger,
) *BackupService {
	return &BackupService{
		items:     items,
		projects:  projects,
		users:     users,
		backups:   backups,
		files:     files,
		itemCache: itemCache,
		logger:    logger,
	}
}

// List returns the user's backup records, newest first.
func (s *BackupService) List(ctx context.Context, userID string) ([]model.Backup, error) {
	return s.backups.ListByUser(ctx, userID)
}

// Export snapshots the user's entire dataset into one JSON archive in
// the blob store and records it.
func (s *BackupService) Export(ctx context.Context, userID string) (*model.Backup, error) {
	archive := Archive{
		Snippets:   []model.Item{},
		Notes:      []model.Item{},
		Checklists: []model.Item{},
		Projects:   []model.Project{},
		ExportedAt: time.Now(),
	}

	for _, kind := range []model.ItemKind{model.KindSnippet, model.KindNote, model.KindChecklist} {
		items, err := s.items.ListOrdered(ctx, repository.ItemFilter{
			UserID:             userID,
			Kind:               kind,
			OrderByUpdatedDesc: true,
		})
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", kind.Collection(), err)
		}
		switch kind {
		case model.KindSnippet:
			archive.Snippets = items
		case model.KindNote:
			archive.Notes = items
		case model.KindChecklist:
			archive.Checklists = items
		}
	}

	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("exporting projects: %w", err)
	}
	archive.Projects = projects

	if profile, err := s.users.GetByID(ctx, userID); err == nil {
		archive.Profile = profile
	}

	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup archive: %w", err)
	}

	now := time.Now()
	fileName := fmt.Sprintf("backup-%d.json", now.UnixMilli())
	key := fmt.Sprintf("backups/%s/%s", userID, fileName)

	if err := s.files.Put(ctx, key, data, "application/json"); err != nil {
		return nil, fmt.Errorf("storing backup archive: %w", err)
	}

	url, err := s.files.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolving backup url: %w", err)
	}

	backup := &model.Backup{
		UserID:      userID,
		FileName:    fileName,
		Timestamp:   now,
		DownloadURL: url,
	}
	if err := s.backups.Create(ctx, backup); err != nil {
		return nil, fmt.Errorf("recording backup: %w", err)
	}

	s.logger.Info("backup exported",
		slog.String("userId", userID),
		slog.String("file", fileName),
		slog.Int("items", len(archive.Snippets)+len(archive.Notes)+len(archive.Checklists)),
	)
	return backup, nil
}

// Import restores an archive. Records are written with their original
// ids, so re-importing the same archive is idempotent rather than
// duplicating. Records owned by a different user are skipped, and the
// caller's cached views are invalidated wholesale afterwards.
func (s *BackupService) Import(ctx context.Context, userID string, data []byte) (*ImportResult, error) {
	// Presence of the three collection keys distinguishes a backup
	// archive from arbitrary JSON before anything is written.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, apperror.ValidationFailed("file", "backup file is not valid JSON")
	}
	for _, field := range []string{"snippets", "notes", "checklists"} {
		if _, ok := probe[field]; !ok {
			return nil, apperror.ValidationFailed("file",
				fmt.Sprintf("backup file is missing the %q collection", field))
		}
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, apperror.ValidationFailed("file", "backup file has an invalid structure")
	}

	result := &ImportResult{}

	for _, project := range archive.Projects {
		if project.ID == "" {
			result.Skipped++
			continue
		}
		if project.UserID != "" && project.UserID != userID {
			result.Skipped++
			continue
		}
		project.UserID = userID
		if err := s.projects.Restore(ctx, &project); err != nil {
			return result, fmt.Errorf("restoring project %s: %w", project.ID, err)
		}
		result.Projects++
	}

	all := make([]model.Item, 0, len(archive.Snippets)+len(archive.Notes)+len(archive.Checklists))
	all = append(all, archive.Snippets...)
	all = append(all, archive.Notes...)
	all = append(all, archive.Checklists...)

	for _, item := range all {
		if item.ID == "" {
			result.Skipped++
			continue
		}
		if item.UserID != "" && item.UserID != userID {
			result.Skipped++
			continue
		}
		if !item.Kind.Valid() {
			result.Skipped++
			continue
		}
		item.UserID = userID
		if err := s.items.Restore(ctx, &item); err != nil {
			return result, fmt.Errorf("restoring item %s: %w", item.ID, err)
		}
		result.Items++
	}

	// Settings travel with the archive; role and admin flag do not.
	if archive.Profile != nil && archive.Profile.ID == userID {
		if user, err := s.users.GetByID(ctx, userID); err == nil {
			user.DisplayName = archive.Profile.DisplayName
			user.Settings = archive.Profile.Settings
			if err := s.users.Update(ctx, user); err != nil {
				return result, fmt.Errorf("restoring profile: %w", err)
			}
		}
	}

	s.itemCache.InvalidateUser(userID)

	s.logger.Info("backup imported",
		slog.String("userId", userID),
		slog.Int("items", result.Items),
		slog.Int("projects", result.Projects),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}
