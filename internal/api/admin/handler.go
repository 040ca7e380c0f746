// Package admin provides REST API handlers for backup and restore.
package admin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	backupsvc "github.com/karmahq/karma-server/internal/service/backup"
	"github.com/karmahq/karma-server/pkg/logger"
)

// maxArchiveSize caps the accepted restore payload at 64 MiB.
const maxArchiveSize = 64 << 20

// BackupService interface for dataset export and restore.
type BackupService interface {
	Export(ctx context.Context) ([]byte, error)
	ExportUser(ctx context.Context, userID uint) ([]byte, error)
	Restore(ctx context.Context, data []byte) error
}

// Handler handles backup API requests.
type Handler struct {
	backupService BackupService
	log           *logger.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(backupService *backupsvc.Service, log *logger.Logger) *Handler {
	return &Handler{
		backupService: backupService,
		log:           log,
	}
}

// NewHandlerWithInterfaces creates a new admin handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(backupService BackupService, log *logger.Logger) *Handler {
	return &Handler{
		backupService: backupService,
		log:           log,
	}
}

// ExportBackup streams the full dataset as a JSON archive.
// GET /api/v1/admin/backup.
func (h *Handler) ExportBackup(c *gin.Context) {
	ctx := context.Background()
	data, err := h.backupService.Export(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export backup")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	filename := fmt.Sprintf("karma-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/json", data)
}

// ExportUserBackup streams one user's snapshot as a JSON archive.
// GET /api/v1/admin/backup/users/:id.
func (h *Handler) ExportUserBackup(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid user ID: %s", idStr))
		return
	}

	ctx := context.Background()
	data, err := h.backupService.ExportUser(ctx, uint(id))
	if err != nil {
		h.log.Error().Err(err).Uint64("user_id", id).Msg("Failed to export user backup")
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	filename := fmt.Sprintf("karma-user-%d-%s.json", id, time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/json", data)
}

// Restore loads a backup archive from the request body.
// POST /api/v1/admin/restore.
func (h *Handler) Restore(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxArchiveSize))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Failed to read archive")
		return
	}

	ctx := context.Background()
	if err := h.backupService.Restore(ctx, data); err != nil {
		h.log.Error().Err(err).Msg("Failed to restore backup")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info().Int("bytes", len(data)).Msg("Backup restored via API")

	c.JSON(http.StatusOK, gin.H{
		"restored":     true,
		"generated_at": time.Now().UTC(),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
