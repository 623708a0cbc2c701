package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nabil/devstash/internal/service"
)

// ProjectHandler serves the project grouping endpoints.
type ProjectHandler struct {
	projects *service.ProjectService
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(projects *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type projectPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleList serves GET /api/projects.
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// HandleGet serves GET /api/projects/{id}.
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// HandleCreate serves POST /api/projects.
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	var payload projectPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.projects.Create(r.Context(), userID, service.ProjectInput{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// HandleUpdate serves PUT /api/projects/{id}.
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	var payload projectPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.projects.Update(r.Context(), userID, chi.URLParam(r, "id"), service.ProjectInput{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// HandleDelete serves DELETE /api/projects/{id}. The project's items
// are left in place and classify as uncategorized afterwards.
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
