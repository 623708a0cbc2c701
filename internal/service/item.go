// Package service contains the business logic layer: validation,
// ownership checks, cache maintenance, and orchestration between the
// repositories and the stores.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/cache"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/query"
	"github.com/nabil/devstash/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxContentLength     = 200000
	MaxTagLength         = 50
	MaxTags              = 20
	MaxChecklistEntries  = 200
)

// ItemCache is the shared query-result cache for item views. One
// instance covers all three collections; the view component of the key
// keeps them apart.
type ItemCache = cache.Cache[model.Item]

// NewItemCache creates the cache used by the item and backup services.
func NewItemCache() *ItemCache {
	return cache.New(func(item model.Item) string { return item.ID })
}

// ItemInput is the caller-supplied portion of an item. Fields that do
// not apply to the kind being written are ignored.
type ItemInput struct {
	Title       string
	Description string
	Tags        []string
	ProjectID   string
	Content     string
	Language    string
	Entries     []model.ChecklistEntry
}

func (in *ItemInput) validate(kind model.ItemKind) error {
	in.Title = strings.TrimSpace(in.Title)

	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, MaxTitleLength)),
		validation.Field(&in.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&in.Content, validation.Length(0, MaxContentLength)),
		validation.Field(&in.Tags, validation.Length(0, MaxTags),
			validation.Each(validation.Required, validation.Length(1, MaxTagLength))),
	)
	if err != nil {
		return validationError(err)
	}

	if kind == model.KindChecklist && len(in.Entries) > MaxChecklistEntries {
		return apperror.ValidationFailed("entries",
			fmt.Sprintf("a checklist can have at most %d entries", MaxChecklistEntries))
	}

	return nil
}

// validationError converts an ozzo-validation error into the domain
// validation error, keeping the first failing field.
func validationError(err error) error {
	if errs, ok := err.(validation.Errors); ok {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		if len(fields) > 0 {
			return apperror.ValidationFailed(fields[0], errs[fields[0]].Error())
		}
	}
	return apperror.ValidationFailed("", err.Error())
}

// ItemService handles snippets, notes, and checklists. The three kinds
// share one implementation because they share storage, scoping, and
// cache semantics.
type ItemService struct {
	repo      repository.ItemRepository
	lister    *query.FallbackLister
	itemCache *ItemCache
	logger    *slog.Logger
}

// NewItemService creates an ItemService.
func NewItemService(repo repository.ItemRepository, lister *query.FallbackLister, itemCache *ItemCache, logger *slog.Logger) *ItemService {
	return &ItemService{
		repo:      repo,
		lister:    lister,
		itemCache: itemCache,
		logger:    logger,
	}
}

// ListScope narrows a listing to one project, the uncategorized group,
// or one tag. The zero value lists the whole collection.
type ListScope struct {
	ProjectID *string
	Tag       string
}

func (sc ListScope) cacheScope() string {
	switch {
	case sc.ProjectID != nil && model.IsUncategorized(*sc.ProjectID):
		return "uncategorized"
	case sc.ProjectID != nil:
		return cache.ProjectScope(*sc.ProjectID)
	case sc.Tag != "":
		return cache.TagScope(sc.Tag)
	default:
		return ""
	}
}

func (sc ListScope) ttl() time.Duration {
	if sc.ProjectID != nil {
		return cache.ProjectTTL
	}
	return cache.CollectionTTL
}

// List returns the user's items of one kind within the scope, newest
// first. Fresh cached results are served without touching the store;
// fallback results are re-sorted here because the degraded query drops
// ordering.
func (s *ItemService) List(ctx context.Context, userID string, kind model.ItemKind, scope ListScope) ([]model.Item, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", "unknown item kind")
	}

	key := cache.Key{View: kind.Collection(), UserID: userID, Scope: scope.cacheScope()}
	if items, ok := s.itemCache.Get(key); ok {
		return items, nil
	}

	filter := repository.ItemFilter{
		UserID:             userID,
		Kind:               kind,
		ProjectID:          scope.ProjectID,
		Tag:                scope.Tag,
		OrderByUpdatedDesc: true,
	}

	items, err := s.lister.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list items",
			slog.String("collection", kind.Collection()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing %s: %w", kind.Collection(), err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	s.itemCache.Put(key, items, func(item model.Item) bool {
		return item.UserID == userID && filter.Matches(&item)
	}, scope.ttl())

	return items, nil
}

// Get retrieves one item. Reading another user's item fails with
// ErrForbidden regardless of whether it exists.
func (s *ItemService) Get(ctx context.Context, userID, id string) (*model.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "item ID is required")
	}

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, apperror.Forbidden("item belongs to another user")
	}

	return item, nil
}

// Create validates and stores a new item, then patches the cached views
// it belongs to.
func (s *ItemService) Create(ctx context.Context, userID string, kind model.ItemKind, input ItemInput) (*model.Item, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", "unknown item kind")
	}
	if err := input.validate(kind); err != nil {
		return nil, err
	}

	item := &model.Item{
		Kind:        kind,
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Tags:        normalizeTags(input.Tags),
		ProjectID:   input.ProjectID,
		UserID:      userID,
	}

	switch kind {
	case model.KindSnippet:
		item.Content = input.Content
		item.Language = input.Language
		if item.Language == "" {
			item.Language = model.DefaultLanguage
		}
	case model.KindNote:
		item.Content = input.Content
	case model.KindChecklist:
		item.Entries = input.Entries
		if item.Entries == nil {
			item.Entries = []model.ChecklistEntry{}
		}
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("failed to create item",
			slog.String("collection", kind.Collection()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}

	s.itemCache.ApplyCreate(*item)

	s.logger.Info("item created",
		slog.String("id", item.ID),
		slog.String("collection", kind.Collection()),
		slog.String("userId", userID),
	)

	return item, nil
}

// Update applies the input to an existing item. Kind and owner never
// change. When the update moves the item between projects, both the old
// and new project views are invalidated along with the in-place patch.
func (s *ItemService) Update(ctx context.Context, userID, id string, input ItemInput) (*model.Item, error) {
	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(item.Kind); err != nil {
		return nil, err
	}

	oldProject := item.ProjectID

	item.Title = input.Title
	item.Description = strings.TrimSpace(input.Description)
	item.Tags = normalizeTags(input.Tags)
	item.ProjectID = input.ProjectID

	switch item.Kind {
	case model.KindSnippet:
		item.Content = input.Content
		item.Language = input.Language
		if item.Language == "" {
			item.Language = model.DefaultLanguage
		}
	case model.KindNote:
		item.Content = input.Content
	case model.KindChecklist:
		item.Entries = input.Entries
		if item.Entries == nil {
			item.Entries = []model.ChecklistEntry{}
		}
	}

	if err := s.repo.Update(ctx, item); err != nil {
		s.logger.Error("failed to update item",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating %s: %w", item.Kind, err)
	}

	var moved []cache.Key
	if oldProject != item.ProjectID {
		view := item.Kind.Collection()
		moved = append(moved,
			cache.Key{View: view, UserID: userID, Scope: projectCacheScope(oldProject)},
			cache.Key{View: view, UserID: userID, Scope: projectCacheScope(item.ProjectID)},
		)
	}
	s.itemCache.ApplyUpdate(*item, moved...)

	s.logger.Info("item updated",
		slog.String("id", item.ID),
		slog.String("collection", item.Kind.Collection()),
	)

	return item, nil
}

// Delete removes an item after the ownership check and drops it from
// every cached view.
func (s *ItemService) Delete(ctx context.Context, userID, id string) error {
	item, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return err
	}

	s.itemCache.ApplyDelete(item.ID)

	s.logger.Info("item deleted",
		slog.String("id", item.ID),
		slog.String("collection", item.Kind.Collection()),
	)
	return nil
}

func projectCacheScope(projectID string) string {
	if model.IsUncategorized(projectID) {
		return "uncategorized"
	}
	return cache.ProjectScope(projectID)
}

// normalizeTags trims tags and drops empties and duplicates, keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
