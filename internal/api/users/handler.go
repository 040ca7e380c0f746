// Package users provides REST API handlers for user registration, profiles,
// and the coin ledger.
package users

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/internal/service/completions"
	"github.com/karmahq/karma-server/internal/service/ledger"
	"github.com/karmahq/karma-server/pkg/logger"
)

// LedgerService interface for user and ledger operations.
type LedgerService interface {
	RegisterOrLogin(ctx context.Context, externalID, displayName, email string) (*models.User, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	GetTransactions(ctx context.Context, userID uint) ([]models.Transaction, error)
	GetRedeemedCodes(ctx context.Context, userID uint) ([]models.RedeemedCode, error)
	AddSocialAccount(ctx context.Context, userID uint, platform, handle string) (*models.SocialAccount, error)
	AdjustContribution(ctx context.Context, userID uint, value float64) (*models.User, error)
	VerifyBalance(ctx context.Context, userID uint) (cached, recomputed int, err error)
}

// CompletionReader interface for a user's completion history.
type CompletionReader interface {
	ListByUser(ctx context.Context, userID uint) ([]models.TaskCompletion, error)
}

// Handler handles user API requests.
type Handler struct {
	ledgerService LedgerService
	completions   CompletionReader
	log           *logger.Logger
}

// NewHandler creates a new users handler.
func NewHandler(ledgerService *ledger.Service, completionService *completions.Service, log *logger.Logger) *Handler {
	return &Handler{
		ledgerService: ledgerService,
		completions:   completionService,
		log:           log,
	}
}

// NewHandlerWithInterfaces creates a new users handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(ledgerService LedgerService, completionReader CompletionReader, log *logger.Logger) *Handler {
	return &Handler{
		ledgerService: ledgerService,
		completions:   completionReader,
		log:           log,
	}
}

type loginRequest struct {
	ExternalID  string `json:"external_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Login registers the user on first sight and returns the profile.
// POST /api/v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "external_id is required")
		return
	}

	ctx := context.Background()
	user, err := h.ledgerService.RegisterOrLogin(ctx, req.ExternalID, req.DisplayName, req.Email)
	if err != nil {
		h.log.Error().Err(err).Str("external_id", req.ExternalID).Msg("Failed to register or log in user")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"generated_at": time.Now().UTC(),
	})
}

// GetUser returns a user profile.
// GET /api/v1/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	user, err := h.ledgerService.GetUser(ctx, userID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"generated_at": time.Now().UTC(),
	})
}

// GetTransactions returns a user's coin ledger, newest first.
// GET /api/v1/users/:id/transactions.
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	txns, err := h.ledgerService.GetTransactions(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get transactions")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve transactions")
		return
	}

	netChange := 0
	for i := range txns {
		netChange += txns[i].Signed()
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"transactions": txns,
		"total":        len(txns),
		"net_change":   netChange,
		"generated_at": time.Now().UTC(),
	})
}

// GetRedeemedCodes returns the codes a user has redeemed.
// GET /api/v1/users/:id/redeemed-codes.
func (h *Handler) GetRedeemedCodes(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	codes, err := h.ledgerService.GetRedeemedCodes(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get redeemed codes")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve redeemed codes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"codes":        codes,
		"total":        len(codes),
		"generated_at": time.Now().UTC(),
	})
}

// GetCompletions returns a user's completion history.
// GET /api/v1/users/:id/completions.
func (h *Handler) GetCompletions(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	history, err := h.completions.ListByUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get completions")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve completions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"completions":  history,
		"total":        len(history),
		"generated_at": time.Now().UTC(),
	})
}

type socialAccountRequest struct {
	Platform string `json:"platform" binding:"required"`
	Handle   string `json:"handle" binding:"required"`
}

// AddSocialAccount links a social media handle to a user.
// POST /api/v1/users/:id/social-accounts.
func (h *Handler) AddSocialAccount(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req socialAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "platform and handle are required")
		return
	}

	ctx := context.Background()
	account, err := h.ledgerService.AddSocialAccount(ctx, userID, req.Platform, req.Handle)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to add social account")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account":      account,
		"generated_at": time.Now().UTC(),
	})
}

type contributionRequest struct {
	Value float64 `json:"value" binding:"required"`
}

// AdjustContribution manually adjusts a user's contribution value (admin).
// POST /api/v1/users/:id/contribution.
func (h *Handler) AdjustContribution(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req contributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "value is required")
		return
	}

	ctx := context.Background()
	user, err := h.ledgerService.AdjustContribution(ctx, userID, req.Value)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to adjust contribution")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to adjust contribution")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"generated_at": time.Now().UTC(),
	})
}

// VerifyBalance compares the cached balance against the transaction log (admin).
// GET /api/v1/users/:id/balance/verify.
func (h *Handler) VerifyBalance(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	cached, recomputed, err := h.ledgerService.VerifyBalance(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to verify balance")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to verify balance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"cached":       cached,
		"recomputed":   recomputed,
		"consistent":   cached == recomputed,
		"generated_at": time.Now().UTC(),
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

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
