package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/cache"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

const MaxProjectNameLength = 100

// ProjectService handles the project grouping. Deleting a project never
// touches its items; they classify as uncategorized afterwards.
type ProjectService struct {
	repo      repository.ProjectRepository
	itemCache *ItemCache
	logger    *slog.Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(repo repository.ProjectRepository, itemCache *ItemCache, logger *slog.Logger) *ProjectService {
	return &ProjectService{
		repo:      repo,
		itemCache: itemCache,
		logger:    logger,
	}
}

// ProjectInput is the caller-supplied portion of a project.
type ProjectInput struct {
	Name        string
	Description string
}

func (in *ProjectInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)

	err := validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, MaxProjectNameLength)),
		validation.Field(&in.Description, validation.Length(0, MaxDescriptionLength)),
	)
	if err != nil {
		return validationError(err)
	}
	if strings.EqualFold(in.Name, model.UncategorizedProject) {
		return apperror.ValidationFailed("name", "this project name is reserved")
	}
	return nil
}

// List returns the user's projects, most recently updated first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	projects, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list projects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// Get retrieves one project with the ownership check.
func (s *ProjectService) Get(ctx context.Context, userID, id string) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}

	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, apperror.Forbidden("project belongs to another user")
	}
	return project, nil
}

// Create validates and stores a new project.
func (s *ProjectService) Create(ctx context.Context, userID string, input ProjectInput) (*model.Project, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		UserID:      userID,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		s.logger.Error("failed to create project", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("userId", userID),
	)
	return project, nil
}

// Update renames or redescribes a project.
func (s *ProjectService) Update(ctx context.Context, userID, id string, input ProjectInput) (*model.Project, error) {
	project, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	project.Name = input.Name
	project.Description = strings.TrimSpace(input.Description)

	if err := s.repo.Update(ctx, project); err != nil {
		s.logger.Error("failed to update project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated", slog.String("id", project.ID))
	return project, nil
}

// Delete removes the project row. Its items survive and move to the
// uncategorized group, so both the project's cached views and the
// uncategorized views go stale.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	project, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, project.ID); err != nil {
		return err
	}

	keys := make([]cache.Key, 0, 6)
	for _, kind := range []model.ItemKind{model.KindSnippet, model.KindNote, model.KindChecklist} {
		keys = append(keys,
			cache.Key{View: kind.Collection(), UserID: userID, Scope: cache.ProjectScope(project.ID)},
			cache.Key{View: kind.Collection(), UserID: userID, Scope: "uncategorized"},
		)
	}
	s.itemCache.Invalidate(keys...)

	s.logger.Info("project deleted",
		slog.String("id", project.ID),
		slog.String("userId", userID),
	)
	return nil
}
