package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/service"
)

// maxImportSize bounds an uploaded archive at 50 MiB.
const maxImportSize = 50 << 20

// BackupHandler serves export, import, and the backup history.
type BackupHandler struct {
	backups *service.BackupService
	logger  *slog.Logger
}

// NewBackupHandler creates a BackupHandler.
func NewBackupHandler(backups *service.BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: backups, logger: logger}
}

// HandleList serves GET /api/backups.
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	records, err := h.backups.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleExport serves POST /api/backups: snapshots the caller's data
// and returns the new backup record with its download link.
func (h *BackupHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	backup, err := h.backups.Export(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, backup)
}

// HandleImport serves POST /api/backups/import. The body is the archive
// JSON itself.
func (h *BackupHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "could not read the upload"))
		return
	}

	result, err := h.backups.Import(r.Context(), userID, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
