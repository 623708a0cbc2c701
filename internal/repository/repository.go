// Package repository declares the persistence interfaces the service layer
// depends on. The sqlite subpackage is the production implementation; tests
// substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/nabil/devstash/internal/model"
)

// FallbackLimit caps the degraded, unordered queries used when the backend
// cannot serve an ordered compound query.
const FallbackLimit = 10

// ItemFilter describes one listing query over a user's items. Every listing
// is owner-scoped; there is no query that spans users.
type ItemFilter struct {
	UserID string
	Kind   model.ItemKind

	// ProjectID, when non-nil, restricts to one project. A value for which
	// model.IsUncategorized is true selects the uncategorized grouping.
	ProjectID *string

	// Tag, when non-empty, restricts to items carrying the tag.
	Tag string

	// OrderByUpdatedDesc requests the ordered primary query. The fallback
	// path ignores it and returns rows in no defined order.
	OrderByUpdatedDesc bool
}

// Uncategorized reports whether the filter targets the uncategorized group.
func (f ItemFilter) Uncategorized() bool {
	return f.ProjectID != nil && model.IsUncategorized(*f.ProjectID)
}

// Matches reports whether an item belongs in this filter's result set.
// The cache uses it to decide which cached lists an optimistic write patches.
func (f ItemFilter) Matches(item *model.Item) bool {
	if item.UserID != f.UserID || item.Kind != f.Kind {
		return false
	}
	if f.ProjectID != nil {
		if f.Uncategorized() {
			if !item.Uncategorized() {
				return false
			}
		} else if item.ProjectID != *f.ProjectID {
			return false
		}
	}
	if f.Tag != "" && !item.HasTag(f.Tag) {
		return false
	}
	return true
}

// ItemRepository is the document-access layer for snippets, notes, and
// checklists.
//
// ListOrdered may fail with apperror.ErrIndexMissing when the backend lacks
// the composite index for a compound filter+sort; callers route that through
// the fallback strategy (query package) rather than handling it directly.
type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id string) (*model.Item, error)
	// Update refreshes updatedAt and never writes userId.
	Update(ctx context.Context, item *model.Item) error
	Delete(ctx context.Context, id string) error

	// ListOrdered runs the primary filtered query, updatedAt descending.
	ListOrdered(ctx context.Context, filter ItemFilter) ([]model.Item, error)
	// ListUnordered runs the degraded query: same filter, no ordering,
	// capped at limit rows.
	ListUnordered(ctx context.Context, filter ItemFilter, limit int) ([]model.Item, error)
	// ListByProjectValue matches the raw stored projectId by equality;
	// nil selects NULL. Used by the uncategorized fallback union.
	ListByProjectValue(ctx context.Context, userID string, kind model.ItemKind, projectID *string, limit int) ([]model.Item, error)

	// Restore inserts or replaces an item preserving its id and createdAt,
	// refreshing only updatedAt. Backup import is the only caller.
	Restore(ctx context.Context, item *model.Item) error
}

// ProjectRepository persists projects. Delete never cascades to items.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.Project, error)
	Restore(ctx context.Context, project *model.Project) error
}

// UserRepository persists profile documents.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.User, error)
}

// BackupRepository records exported snapshot metadata.
type BackupRepository interface {
	Create(ctx context.Context, backup *model.Backup) error
	ListByUser(ctx context.Context, userID string) ([]model.Backup, error)
}
