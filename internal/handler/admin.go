package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/service"
)

// AdminHandler serves the user management surface. Every route behind
// RequireAdmin re-reads the caller's profile, so a demotion takes
// effect on the next request rather than at the next sign-in.
type AdminHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(users *service.UserService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

// RequireAdmin gates a route subtree on the caller's current role.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requestUser(w, r)
		if !ok {
			return
		}

		user, err := h.users.Get(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !user.IsAdmin {
			h.logger.Warn("admin route denied", slog.String("userId", userID))
			writeError(w, apperror.Forbidden("admin access required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleList serves GET /api/admin/users.
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet serves GET /api/admin/users/{id}.
func (h *AdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type rolePayload struct {
	Role string `json:"role"`
}

// HandleSetRole serves PUT /api/admin/users/{id}/role.
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.SetRole(r.Context(), chi.URLParam(r, "id"), model.Role(payload.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type premiumPayload struct {
	// ExpiresAt is epoch milliseconds; zero revokes the grant.
	ExpiresAt int64 `json:"expiresAt"`
}

// HandleGrantPremium serves PUT /api/admin/users/{id}/premium.
func (h *AdminHandler) HandleGrantPremium(w http.ResponseWriter, r *http.Request) {
	var payload premiumPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	var until time.Time
	if payload.ExpiresAt != 0 {
		until = time.UnixMilli(payload.ExpiresAt)
	}

	user, err := h.users.GrantTemporaryPremium(r.Context(), chi.URLParam(r, "id"), until)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete serves DELETE /api/admin/users/{id}.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
