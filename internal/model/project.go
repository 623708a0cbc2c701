package model

import "time"

// Project groups items for one user. Deleting a project does not cascade to
// its items: their projectId is left dangling, and listing queries classify
// any item whose projectId no longer resolves as uncategorized.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
