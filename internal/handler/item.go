package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/auth"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/service"
)

// ItemHandler serves the three item collections. The collection segment
// of the URL selects the kind.
type ItemHandler struct {
	items  *service.ItemService
	logger *slog.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(items *service.ItemService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

// itemPayload is the request body for creates and updates.
type itemPayload struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Tags        []string               `json:"tags"`
	ProjectID   string                 `json:"projectId"`
	Content     string                 `json:"content"`
	Language    string                 `json:"language"`
	Entries     []model.ChecklistEntry `json:"entries"`
}

func (p itemPayload) input() service.ItemInput {
	return service.ItemInput{
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		ProjectID:   p.ProjectID,
		Content:     p.Content,
		Language:    p.Language,
		Entries:     p.Entries,
	}
}

func kindFromCollection(collection string) (model.ItemKind, bool) {
	switch collection {
	case "snippets":
		return model.KindSnippet, true
	case "notes":
		return model.KindNote, true
	case "checklists":
		return model.KindChecklist, true
	}
	return "", false
}

func requestKind(w http.ResponseWriter, r *http.Request) (model.ItemKind, bool) {
	kind, ok := kindFromCollection(chi.URLParam(r, "collection"))
	if !ok {
		writeError(w, apperror.NotFound("collection", chi.URLParam(r, "collection")))
	}
	return kind, ok
}

func requestUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
	}
	return userID, ok
}

// HandleList serves GET /api/{collection}. Optional query parameters:
// project (a project id or "uncategorized") and tag.
func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	kind, ok := requestKind(w, r)
	if !ok {
		return
	}

	var scope service.ListScope
	if r.URL.Query().Has("project") {
		project := r.URL.Query().Get("project")
		scope.ProjectID = &project
	}
	scope.Tag = r.URL.Query().Get("tag")

	items, err := h.items.List(r.Context(), userID, kind, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleGet serves GET /api/{collection}/{id}.
func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	if _, ok := requestKind(w, r); !ok {
		return
	}

	item, err := h.items.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleCreate serves POST /api/{collection}.
func (h *ItemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	kind, ok := requestKind(w, r)
	if !ok {
		return
	}

	var payload itemPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.items.Create(r.Context(), userID, kind, payload.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdate serves PUT /api/{collection}/{id}.
func (h *ItemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	if _, ok := requestKind(w, r); !ok {
		return
	}

	var payload itemPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.items.Update(r.Context(), userID, chi.URLParam(r, "id"), payload.input())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// HandleDelete serves DELETE /api/{collection}/{id}.
func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	if _, ok := requestKind(w, r); !ok {
		return
	}

	if err := h.items.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListByTag serves GET /api/tags/{tag}: every collection filtered
// to one tag, in a single response.
func (h *ItemHandler) HandleListByTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		writeError(w, apperror.ValidationFailed("tag", "a tag is required"))
		return
	}

	out := make(map[string][]model.Item, 3)
	for _, kind := range []model.ItemKind{model.KindSnippet, model.KindNote, model.KindChecklist} {
		items, err := h.items.List(r.Context(), userID, kind, service.ListScope{Tag: tag})
		if err != nil {
			writeError(w, err)
			return
		}
		out[kind.Collection()] = items
	}

	writeJSON(w, http.StatusOK, out)
}
