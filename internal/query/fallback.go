// Package query degrades listing queries gracefully when the store
// cannot serve the primary ordered form.
package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

// FallbackLister wraps an ItemRepository and retries listings that fail
// with ErrIndexMissing using simpler, unordered queries. Every other
// error passes through untouched.
type FallbackLister struct {
	repo   repository.ItemRepository
	logger *slog.Logger
}

// NewFallbackLister creates a lister over the given repository.
func NewFallbackLister(repo repository.ItemRepository, logger *slog.Logger) *FallbackLister {
	return &FallbackLister{repo: repo, logger: logger}
}

// List runs the primary ordered query and, if the store reports a
// missing index, degrades to an unordered query capped at
// repository.FallbackLimit rows. Callers that need ordering re-sort the
// result themselves.
func (l *FallbackLister) List(ctx context.Context, filter repository.ItemFilter) ([]model.Item, error) {
	items, err := l.repo.ListOrdered(ctx, filter)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, apperror.ErrIndexMissing) {
		return nil, err
	}

	l.logger.Warn("ordered query unavailable, using fallback",
		slog.String("collection", filter.Kind.Collection()),
		slog.String("userId", filter.UserID),
	)

	if filter.Uncategorized() {
		return l.listUncategorized(ctx, filter)
	}

	return l.repo.ListUnordered(ctx, filter, repository.FallbackLimit)
}

// listUncategorized unions the three stored representations of "no
// project": empty string, the literal sentinel, and NULL. The NULL leg
// is best-effort; some stores reject equality probes against absent
// fields and the other two legs still produce a usable result.
func (l *FallbackLister) listUncategorized(ctx context.Context, filter repository.ItemFilter) ([]model.Item, error) {
	empty := ""
	sentinel := model.UncategorizedProject

	seen := make(map[string]bool)
	var merged []model.Item

	for _, projectID := range []*string{&empty, &sentinel, nil} {
		items, err := l.repo.ListByProjectValue(ctx, filter.UserID, filter.Kind,
			projectID, repository.FallbackLimit)
		if err != nil {
			if projectID == nil {
				l.logger.Warn("null project probe failed, keeping partial result",
					slog.String("userId", filter.UserID),
					slog.String("error", err.Error()),
				)
				continue
			}
			return nil, err
		}
		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}

	if merged == nil {
		merged = []model.Item{}
	}
	return merged, nil
}
