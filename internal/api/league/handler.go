// Package league provides REST API handlers for weekly standings and the
// leaderboard.
package league

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	leaguesvc "github.com/karmahq/karma-server/internal/service/league"
	"github.com/karmahq/karma-server/pkg/logger"
)

// LeagueService interface for ranking operations.
type LeagueService interface {
	GetStanding(ctx context.Context, userID uint) (*leaguesvc.Standing, error)
	GetLeaderboard(ctx context.Context, limit int) ([]leaguesvc.LeaderboardEntry, error)
}

// Handler handles league API requests.
type Handler struct {
	leagueService LeagueService
	log           *logger.Logger
}

// NewHandler creates a new league handler.
func NewHandler(leagueService *leaguesvc.Service, log *logger.Logger) *Handler {
	return &Handler{
		leagueService: leagueService,
		log:           log,
	}
}

// NewHandlerWithInterfaces creates a new league handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(leagueService LeagueService, log *logger.Logger) *Handler {
	return &Handler{
		leagueService: leagueService,
		log:           log,
	}
}

// GetStanding returns a user's weekly league standing.
// GET /api/v1/league/users/:id.
func (h *Handler) GetStanding(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	standing, err := h.leagueService.GetStanding(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get league standing")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve league standing")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"standing":     standing,
		"generated_at": time.Now().UTC(),
	})
}

// GetLeaderboard returns the weekly leaderboard.
// GET /api/v1/league/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	entries, err := h.leagueService.GetLeaderboard(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get weekly leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// parseUserID extracts and validates the user ID from the URL parameter.
func (h *Handler) parseUserID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %s", idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}
	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}
	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
