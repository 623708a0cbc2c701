package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implements repository.ItemRepository on the shared connection.
type ItemRepo struct {
	conn *sql.DB
}

// NewItemRepo creates the item repository over an open database.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{conn: db.conn}
}

const itemColumns = `id, kind, title, description, tags, project_id, user_id,
	content, language, entries, created_at, updated_at`

// Create inserts a new item, assigning its id and timestamps.
func (r *ItemRepo) Create(ctx context.Context, item *model.Item) error {
	item.ID = xid.New().String()

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	tags, entries, err := encodeVariantFields(item)
	if err != nil {
		return err
	}

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		string(item.Kind),
		item.Title,
		item.Description,
		tags,
		item.ProjectID,
		item.UserID,
		item.Content,
		item.Language,
		entries,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating item: %w", err)
	}

	return nil
}

// GetByID retrieves a single item regardless of kind.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*model.Item, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)

	item, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("item", id)
		}
		return nil, fmt.Errorf("sqlite: getting item %s: %w", id, err)
	}

	return item, nil
}

// Update writes the mutable fields and refreshes updatedAt. The owner and
// kind columns are deliberately absent from the SET list; neither can ever
// change after creation.
func (r *ItemRepo) Update(ctx context.Context, item *model.Item) error {
	item.UpdatedAt = time.Now()

	tags, entries, err := encodeVariantFields(item)
	if err != nil {
		return err
	}

	result, err := r.conn.ExecContext(ctx,
		`UPDATE items
		 SET title = ?, description = ?, tags = ?, project_id = ?,
		     content = ?, language = ?, entries = ?, updated_at = ?
		 WHERE id = ?`,
		item.Title,
		item.Description,
		tags,
		item.ProjectID,
		item.Content,
		item.Language,
		entries,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating item %s: %w", item.ID, err)
	}

	return checkAffected(result, "item", item.ID)
}

// Delete hard-deletes an item. There is no soft-delete or tombstone.
func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting item %s: %w", id, err)
	}
	return checkAffected(result, "item", id)
}

// ListOrdered runs the primary compound query, updatedAt descending.
//
// For the uncategorized scope the WHERE clause also sweeps in items whose
// project_id no longer resolves to a live project; deleting a project never
// cascades, so its orphaned items classify as uncategorized from then on.
func (r *ItemRepo) ListOrdered(ctx context.Context, filter repository.ItemFilter) ([]model.Item, error) {
	where, args := itemWhere(filter)
	q := `SELECT ` + itemColumns + ` FROM items WHERE ` + where +
		` ORDER BY updated_at DESC`

	return r.queryItems(ctx, q, args)
}

// ListUnordered is the degraded query used by the fallback path: same
// filter, no ordering, capped at limit rows.
func (r *ItemRepo) ListUnordered(ctx context.Context, filter repository.ItemFilter, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = repository.FallbackLimit
	}
	where, args := itemWhere(filter)
	q := `SELECT ` + itemColumns + ` FROM items WHERE ` + where + ` LIMIT ?`
	args = append(args, limit)

	return r.queryItems(ctx, q, args)
}

// ListByProjectValue matches the raw stored project_id by equality; a nil
// projectID selects NULL. The uncategorized fallback union issues one call
// per stored representation because the ordered OR-form is what needs the
// composite index in the first place.
func (r *ItemRepo) ListByProjectValue(ctx context.Context, userID string, kind model.ItemKind, projectID *string, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = repository.FallbackLimit
	}

	var (
		q    string
		args []any
	)
	if projectID == nil {
		q = `SELECT ` + itemColumns + ` FROM items
		     WHERE user_id = ? AND kind = ? AND project_id IS NULL LIMIT ?`
		args = []any{userID, string(kind), limit}
	} else {
		q = `SELECT ` + itemColumns + ` FROM items
		     WHERE user_id = ? AND kind = ? AND project_id = ? LIMIT ?`
		args = []any{userID, string(kind), *projectID, limit}
	}

	return r.queryItems(ctx, q, args)
}

// Restore inserts or replaces an item preserving its id and createdAt.
// Only updatedAt advances; backup import is the sole caller.
func (r *ItemRepo) Restore(ctx context.Context, item *model.Item) error {
	item.UpdatedAt = time.Now()

	tags, entries, err := encodeVariantFields(item)
	if err != nil {
		return err
	}

	_, err = r.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		string(item.Kind),
		item.Title,
		item.Description,
		tags,
		item.ProjectID,
		item.UserID,
		item.Content,
		item.Language,
		entries,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: restoring item %s: %w", item.ID, err)
	}

	return nil
}

// itemWhere builds the WHERE clause and args shared by the ordered and
// unordered listings.
func itemWhere(filter repository.ItemFilter) (string, []any) {
	clauses := []string{"user_id = ?", "kind = ?"}
	args := []any{filter.UserID, string(filter.Kind)}

	if filter.ProjectID != nil {
		if filter.Uncategorized() {
			clauses = append(clauses,
				`(project_id IS NULL OR project_id = '' OR project_id = 'uncategorized'
				  OR project_id NOT IN (SELECT id FROM projects WHERE user_id = ?))`)
			args = append(args, filter.UserID)
		} else {
			clauses = append(clauses, "project_id = ?")
			args = append(args, *filter.ProjectID)
		}
	}

	if filter.Tag != "" {
		clauses = append(clauses,
			`EXISTS (SELECT 1 FROM json_each(items.tags) WHERE json_each.value = ?)`)
		args = append(args, filter.Tag)
	}

	return strings.Join(clauses, " AND "), args
}

func (r *ItemRepo) queryItems(ctx context.Context, q string, args []any) ([]model.Item, error) {
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing items: %w", err)
	}
	defer rows.Close()

	items := make([]model.Item, 0, repository.FallbackLimit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}

	return items, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.Item, error) {
	var (
		item      model.Item
		kind      string
		tags      string
		projectID sql.NullString
		entries   string
	)

	err := s.Scan(
		&item.ID,
		&kind,
		&item.Title,
		&item.Description,
		&tags,
		&projectID,
		&item.UserID,
		&item.Content,
		&item.Language,
		&entries,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Kind = model.ItemKind(kind)
	item.ProjectID = projectID.String // NULL decodes to ""

	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for item %s: %w", item.ID, err)
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}

	if item.Kind == model.KindChecklist {
		if err := json.Unmarshal([]byte(entries), &item.Entries); err != nil {
			return nil, fmt.Errorf("decoding entries for item %s: %w", item.ID, err)
		}
	}

	return &item, nil
}

// encodeVariantFields serializes the tags and checklist entries for storage.
// The columns hold JSON so json_each can query tag membership; the model
// keeps both as structured fields.
func encodeVariantFields(item *model.Item) (tags, entries string, err error) {
	t := item.Tags
	if t == nil {
		t = []string{}
	}
	tb, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	e := item.Entries
	if e == nil {
		e = []model.ChecklistEntry{}
	}
	eb, err := json.Marshal(e)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding entries: %w", err)
	}

	return string(tb), string(eb), nil
}

func checkAffected(result sql.Result, resource, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
