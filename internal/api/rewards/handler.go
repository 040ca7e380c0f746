// Package rewards provides REST API handlers for the reward catalog and the
// redemption flow.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	rewardsvc "github.com/karmahq/karma-server/internal/service/rewards"
	"github.com/karmahq/karma-server/pkg/logger"
)

// RewardService interface for catalog and redemption operations.
type RewardService interface {
	GetCatalog(ctx context.Context) ([]models.RewardCategory, error)
	GetReward(ctx context.Context, rewardID uint) (*models.Reward, error)
	Redeem(ctx context.Context, userID, rewardID uint) (*rewardsvc.Redemption, error)
	CreateReward(ctx context.Context, categoryID uint, name, description string, cost, quantity int, codes []string) (*models.Reward, error)
	UpdateReward(ctx context.Context, rewardID uint, name, description string, cost int) (*models.Reward, error)
	DeleteReward(ctx context.Context, rewardID uint) error
	CreateCategory(ctx context.Context, name, slug string) (*models.RewardCategory, error)
}

// Handler handles reward API requests.
type Handler struct {
	rewardService RewardService
	log           *logger.Logger
}

// NewHandler creates a new rewards handler.
func NewHandler(rewardService *rewardsvc.Service, log *logger.Logger) *Handler {
	return &Handler{
		rewardService: rewardService,
		log:           log,
	}
}

// NewHandlerWithInterfaces creates a new rewards handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(rewardService RewardService, log *logger.Logger) *Handler {
	return &Handler{
		rewardService: rewardService,
		log:           log,
	}
}

// GetCatalog returns every category with its rewards.
// GET /api/v1/rewards.
func (h *Handler) GetCatalog(c *gin.Context) {
	ctx := context.Background()
	categories, err := h.rewardService.GetCatalog(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get reward catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve reward catalog")
		return
	}

	total := 0
	for _, cat := range categories {
		total += len(cat.Rewards)
	}

	c.JSON(http.StatusOK, gin.H{
		"categories":    categories,
		"total_rewards": total,
		"generated_at":  time.Now().UTC(),
	})
}

// GetReward returns one reward.
// GET /api/v1/rewards/:id.
func (h *Handler) GetReward(c *gin.Context) {
	rewardID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	reward, err := h.rewardService.GetReward(ctx, rewardID)
	if err != nil {
		h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to get reward")
		h.errorResponse(c, http.StatusNotFound, "Reward not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reward":       reward,
		"code_backed":  reward.CodeBacked(),
		"generated_at": time.Now().UTC(),
	})
}

type redeemRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// Redeem exchanges a user's karma coins for a reward.
// POST /api/v1/rewards/:id/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	rewardID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := context.Background()
	result, err := h.rewardService.Redeem(ctx, req.UserID, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, rewardsvc.ErrInsufficientCoins):
			h.errorResponse(c, http.StatusPaymentRequired, "Not enough karma coins")
		case errors.Is(err, rewardsvc.ErrOutOfStock):
			h.errorResponse(c, http.StatusConflict, "Reward is out of stock")
		case repository.IsNotFound(err):
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
		default:
			h.log.Error().Err(err).
				Uint("user_id", req.UserID).
				Uint("reward_id", rewardID).
				Msg("Failed to redeem reward")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to redeem reward")
		}
		return
	}

	h.log.Info().
		Uint("user_id", req.UserID).
		Uint("reward_id", rewardID).
		Msg("Reward redeemed via API")

	c.JSON(http.StatusOK, gin.H{
		"redemption":   result,
		"generated_at": time.Now().UTC(),
	})
}

type createRewardRequest struct {
	CategoryID  uint     `json:"category_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Cost        int      `json:"cost" binding:"required"`
	Quantity    int      `json:"quantity"`
	Codes       []string `json:"codes"`
}

// CreateReward adds a custom reward to the catalog (admin).
// POST /api/v1/rewards.
func (h *Handler) CreateReward(c *gin.Context) {
	var req createRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	reward, err := h.rewardService.CreateReward(ctx, req.CategoryID, req.Name, req.Description, req.Cost, req.Quantity, req.Codes)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "Category not found")
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("Failed to create reward")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"reward":       reward,
		"generated_at": time.Now().UTC(),
	})
}

type updateRewardRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Cost        int    `json:"cost" binding:"required"`
}

// UpdateReward edits a reward's name, description, and cost (admin).
// PUT /api/v1/rewards/:id.
func (h *Handler) UpdateReward(c *gin.Context) {
	rewardID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req updateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	reward, err := h.rewardService.UpdateReward(ctx, rewardID, req.Name, req.Description, req.Cost)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
			return
		}
		h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to update reward")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reward":       reward,
		"generated_at": time.Now().UTC(),
	})
}

// DeleteReward removes a reward from the catalog (admin).
// DELETE /api/v1/rewards/:id.
func (h *Handler) DeleteReward(c *gin.Context) {
	rewardID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	if err := h.rewardService.DeleteReward(ctx, rewardID); err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
			return
		}
		h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to delete reward")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to delete reward")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":      rewardID,
		"generated_at": time.Now().UTC(),
	})
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// CreateCategory adds a reward category (admin).
// POST /api/v1/rewards/categories.
func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	category, err := h.rewardService.CreateCategory(ctx, req.Name, req.Slug)
	if err != nil {
		h.log.Error().Err(err).Str("slug", req.Slug).Msg("Failed to create category")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to create category")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"category":     category,
		"generated_at": time.Now().UTC(),
	})
}

// parseID extracts and validates a numeric URL parameter.
func (h *Handler) parseID(c *gin.Context, name string) (uint, error) {
	idStr := c.Param(name)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, idStr)
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
