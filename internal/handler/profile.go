package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/service"
)

// ProfileHandler serves the signed-in user's own profile.
type ProfileHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(users *service.UserService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// HandleGet serves GET /api/profile.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type profilePayload struct {
	DisplayName string         `json:"displayName"`
	Settings    model.Settings `json:"settings"`
}

// HandleUpdate serves PUT /api/profile.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	var payload profilePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, payload.DisplayName, payload.Settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandlePicture serves POST /api/profile/picture. The image arrives as
// the "file" part of a multipart form.
func (h *ProfileHandler) HandlePicture(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(service.MaxProfilePictureSize); err != nil {
		writeError(w, apperror.ValidationFailed("file", "a multipart upload is required"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "the file field is missing"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxProfilePictureSize+1))
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "could not read the upload"))
		return
	}

	user, err := h.users.SetProfilePicture(r.Context(), userID, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
