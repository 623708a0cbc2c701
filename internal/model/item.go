// Package model defines the data structures used throughout the application.
package model

import "time"

// ItemKind discriminates the item variants. The kind is chosen once at
// creation time and never re-inferred from field shape.
type ItemKind string

const (
	KindSnippet   ItemKind = "snippet"
	KindNote      ItemKind = "note"
	KindChecklist ItemKind = "checklist"
)

// Valid reports whether k is one of the three known kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case KindSnippet, KindNote, KindChecklist:
		return true
	}
	return false
}

// Collection returns the logical collection name for the kind, used in
// cache keys, routes, and the backup file format.
func (k ItemKind) Collection() string {
	switch k {
	case KindSnippet:
		return "snippets"
	case KindNote:
		return "notes"
	case KindChecklist:
		return "checklists"
	}
	return string(k)
}

// DefaultLanguage is used for snippets created without a language tag.
const DefaultLanguage = "plaintext"

// UncategorizedProject is the sentinel project id meaning "no project".
// Stored values of "", "uncategorized", and NULL are all treated as
// equivalent; IsUncategorized is the single place that encodes this.
const UncategorizedProject = "uncategorized"

// IsUncategorized reports whether a projectId value means "no project".
func IsUncategorized(projectID string) bool {
	return projectID == "" || projectID == UncategorizedProject
}

// ChecklistEntry is one row of a checklist. Entries are an ordered,
// structured field, never a list re-encoded inside a text column.
type ChecklistEntry struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Item is the tagged union over snippets, notes, and checklists.
//
// Content holds the text payload for snippets and notes; Language applies to
// snippets only; Entries applies to checklists only. Unused variant fields
// stay at their zero value and are omitted from JSON.
type Item struct {
	ID          string           `json:"id"`
	Kind        ItemKind         `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags"`
	ProjectID   string           `json:"projectId,omitempty"`
	UserID      string           `json:"userId"`
	Content     string           `json:"content,omitempty"`
	Language    string           `json:"language,omitempty"`
	Entries     []ChecklistEntry `json:"entries,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Uncategorized reports whether the item has no resolved project association.
func (i *Item) Uncategorized() bool {
	return IsUncategorized(i.ProjectID)
}

// HasTag reports whether the item carries the given tag. Tag order is
// preserved for display but irrelevant for matching.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
