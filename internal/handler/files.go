package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/blob"
)

// FilesHandler serves objects from the filesystem blob store. It is
// mounted only when local storage is configured; S3 deployments hand
// out presigned links instead.
type FilesHandler struct {
	store *blob.FS
}

// NewFilesHandler creates a FilesHandler.
func NewFilesHandler(store *blob.FS) *FilesHandler {
	return &FilesHandler{store: store}
}

// HandleGet serves GET /files/*. Backup archives are private: the owner
// segment of the key must match the caller. Profile pictures are
// visible to any signed-in user.
func (h *FilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "*")

	if rest, found := strings.CutPrefix(key, "backups/"); found {
		owner, _, _ := strings.Cut(rest, "/")
		if owner != userID {
			writeError(w, apperror.Forbidden("backup belongs to another user"))
			return
		}
	}

	path, err := h.store.Open(key)
	if err != nil {
		writeError(w, err)
		return
	}

	http.ServeFile(w, r, path)
}
