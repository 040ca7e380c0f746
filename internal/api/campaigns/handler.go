// Package campaigns provides REST API handlers for campaigns, tasks, the
// completion workflow, and the progress report.
package campaigns

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
	campaignsvc "github.com/karmahq/karma-server/internal/service/campaigns"
	"github.com/karmahq/karma-server/internal/service/completions"
	"github.com/karmahq/karma-server/internal/service/progress"
	"github.com/karmahq/karma-server/pkg/logger"
)

// CampaignService interface for campaign lifecycle operations.
type CampaignService interface {
	Create(ctx context.Context, mission, brandName, description string, targetAmount float64) (*models.Campaign, error)
	Get(ctx context.Context, campaignID uint) (*models.Campaign, error)
	List(ctx context.Context, status string) ([]models.Campaign, error)
	Activate(ctx context.Context, campaignID uint) (*models.Campaign, error)
	RejectCampaign(ctx context.Context, campaignID uint) (*models.Campaign, error)
	AddTask(ctx context.Context, campaignID uint, description, kind string, impactPoints, karmaCoins int) (*models.Task, error)
}

// CompletionService interface for the submission and review workflow.
type CompletionService interface {
	Submit(ctx context.Context, userID, campaignID, taskID uint, submittedData string) (*models.TaskCompletion, error)
	Approve(ctx context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error)
	Reject(ctx context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error)
	ListPending(ctx context.Context) ([]models.TaskCompletion, error)
}

// ProgressReporter interface for the campaign progress report.
type ProgressReporter interface {
	Report(ctx context.Context, campaignID uint) (*progress.Report, error)
}

// Handler handles campaign API requests.
type Handler struct {
	campaignService   CampaignService
	completionService CompletionService
	reporter          ProgressReporter
	log               *logger.Logger
}

// NewHandler creates a new campaigns handler.
func NewHandler(
	campaignService *campaignsvc.Service,
	completionService *completions.Service,
	aggregator *progress.Aggregator,
	log *logger.Logger,
) *Handler {
	return &Handler{
		campaignService:   campaignService,
		completionService: completionService,
		reporter:          aggregator,
		log:               log,
	}
}

// NewHandlerWithInterfaces creates a new campaigns handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	campaignService CampaignService,
	completionService CompletionService,
	reporter ProgressReporter,
	log *logger.Logger,
) *Handler {
	return &Handler{
		campaignService:   campaignService,
		completionService: completionService,
		reporter:          reporter,
		log:               log,
	}
}

type createCampaignRequest struct {
	Mission      string  `json:"mission" binding:"required"`
	BrandName    string  `json:"brand_name"`
	Description  string  `json:"description"`
	TargetAmount float64 `json:"target_amount"`
}

// CreateCampaign registers a new sponsored campaign.
// POST /api/v1/campaigns.
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	campaign, err := h.campaignService.Create(ctx, req.Mission, req.BrandName, req.Description, req.TargetAmount)
	if err != nil {
		h.log.Error().Err(err).Str("mission", req.Mission).Msg("Failed to create campaign")
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"campaign":     campaign,
		"generated_at": time.Now().UTC(),
	})
}

// ListCampaigns returns campaigns, optionally filtered by status.
// GET /api/v1/campaigns?status=active.
func (h *Handler) ListCampaigns(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.CampaignStatusPending, models.CampaignStatusActive,
		models.CampaignStatusRejected, models.CampaignStatusCompleted:
	default:
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid status: %s", status))
		return
	}

	ctx := context.Background()
	list, err := h.campaignService.List(ctx, status)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list campaigns")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve campaigns")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaigns":    list,
		"total":        len(list),
		"generated_at": time.Now().UTC(),
	})
}

// GetCampaign returns one campaign with its tasks.
// GET /api/v1/campaigns/:id.
func (h *Handler) GetCampaign(c *gin.Context) {
	campaignID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	campaign, err := h.campaignService.Get(ctx, campaignID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "Campaign not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign":     campaign,
		"generated_at": time.Now().UTC(),
	})
}

// GetProgress returns the aggregated progress report for a campaign.
// GET /api/v1/campaigns/:id/progress.
func (h *Handler) GetProgress(c *gin.Context) {
	campaignID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	report, err := h.reporter.Report(ctx, campaignID)
	if err != nil {
		if repository.IsNotFound(err) {
			h.errorResponse(c, http.StatusNotFound, "Campaign not found")
			return
		}
		h.log.Error().Err(err).Uint("campaign_id", campaignID).Msg("Failed to build progress report")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to build progress report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":       report,
		"generated_at": time.Now().UTC(),
	})
}

// Activate moves a pending campaign to active (admin).
// POST /api/v1/campaigns/:id/activate.
func (h *Handler) Activate(c *gin.Context) {
	h.transition(c, h.campaignService.Activate)
}

// RejectCampaign moves a pending campaign to rejected (admin).
// POST /api/v1/campaigns/:id/reject.
func (h *Handler) RejectCampaign(c *gin.Context) {
	h.transition(c, h.campaignService.RejectCampaign)
}

func (h *Handler) transition(c *gin.Context, fn func(context.Context, uint) (*models.Campaign, error)) {
	campaignID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := fn(context.Background(), campaignID)
	if err != nil {
		switch {
		case errors.Is(err, campaignsvc.ErrInvalidTransition):
			h.errorResponse(c, http.StatusConflict, "Campaign is not pending")
		case repository.IsNotFound(err):
			h.errorResponse(c, http.StatusNotFound, "Campaign not found")
		default:
			h.log.Error().Err(err).Uint("campaign_id", campaignID).Msg("Failed to change campaign status")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to change campaign status")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign":     campaign,
		"generated_at": time.Now().UTC(),
	})
}

type addTaskRequest struct {
	Description  string `json:"description" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
	ImpactPoints int    `json:"impact_points"`
	KarmaCoins   int    `json:"karma_coins"`
}

// AddTask attaches a task to a campaign (admin).
// POST /api/v1/campaigns/:id/tasks.
func (h *Handler) AddTask(c *gin.Context) {
	campaignID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req addTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := context.Background()
	task, err := h.campaignService.AddTask(ctx, campaignID, req.Description, req.Kind, req.ImpactPoints, req.KarmaCoins)
	if err != nil {
		switch {
		case errors.Is(err, campaignsvc.ErrInvalidTransition):
			h.errorResponse(c, http.StatusConflict, "Campaign no longer accepts tasks")
		case repository.IsNotFound(err):
			h.errorResponse(c, http.StatusNotFound, "Campaign not found")
		default:
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task":         task,
		"generated_at": time.Now().UTC(),
	})
}

type submitCompletionRequest struct {
	UserID        uint   `json:"user_id" binding:"required"`
	SubmittedData string `json:"submitted_data"`
}

// SubmitCompletion records a user's completion of a task.
// POST /api/v1/campaigns/:id/tasks/:taskID/completions.
func (h *Handler) SubmitCompletion(c *gin.Context) {
	campaignID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	taskID, err := h.parseID(c, "taskID")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req submitCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "user_id is required")
		return
	}

	ctx := context.Background()
	completion, err := h.completionService.Submit(ctx, req.UserID, campaignID, taskID, req.SubmittedData)
	if err != nil {
		switch {
		case errors.Is(err, completions.ErrCampaignNotActive):
			h.errorResponse(c, http.StatusConflict, "Campaign is not active")
		case errors.Is(err, completions.ErrAlreadyCompleted):
			h.errorResponse(c, http.StatusConflict, "Task already completed")
		case errors.Is(err, completions.ErrTaskMismatch):
			h.errorResponse(c, http.StatusBadRequest, "Task does not belong to campaign")
		case repository.IsNotFound(err):
			h.errorResponse(c, http.StatusNotFound, "Campaign or task not found")
		default:
			h.log.Error().Err(err).
				Uint("user_id", req.UserID).
				Uint("task_id", taskID).
				Msg("Failed to submit completion")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to submit completion")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"completion":   completion,
		"generated_at": time.Now().UTC(),
	})
}

// ListPendingCompletions returns the admin review queue.
// GET /api/v1/completions/pending.
func (h *Handler) ListPendingCompletions(c *gin.Context) {
	ctx := context.Background()
	pending, err := h.completionService.ListPending(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list pending completions")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve pending completions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completions":  pending,
		"total":        len(pending),
		"generated_at": time.Now().UTC(),
	})
}

type reviewRequest struct {
	ReviewerID uint `json:"reviewer_id" binding:"required"`
}

// ApproveCompletion approves a pending completion (admin).
// POST /api/v1/completions/:id/approve.
func (h *Handler) ApproveCompletion(c *gin.Context) {
	h.review(c, h.completionService.Approve)
}

// RejectCompletion rejects a pending completion (admin).
// POST /api/v1/completions/:id/reject.
func (h *Handler) RejectCompletion(c *gin.Context) {
	h.review(c, h.completionService.Reject)
}

func (h *Handler) review(c *gin.Context, fn func(context.Context, uint, uint) (*models.TaskCompletion, error)) {
	completionID, err := h.parseID(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "reviewer_id is required")
		return
	}

	completion, err := fn(context.Background(), completionID, req.ReviewerID)
	if err != nil {
		switch {
		case errors.Is(err, completions.ErrAlreadyReviewed):
			h.errorResponse(c, http.StatusConflict, "Completion already reviewed")
		case repository.IsNotFound(err):
			h.errorResponse(c, http.StatusNotFound, "Completion not found")
		default:
			h.log.Error().Err(err).Uint("completion_id", completionID).Msg("Failed to review completion")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to review completion")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"completion":   completion,
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
