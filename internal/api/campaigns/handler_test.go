//nolint:noctx // Test file uses http.NewRequest for simplicity
package campaigns

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/karmahq/karma-server/internal/models"
	campaignsvc "github.com/karmahq/karma-server/internal/service/campaigns"
	"github.com/karmahq/karma-server/internal/service/completions"
	"github.com/karmahq/karma-server/internal/service/progress"
	"github.com/karmahq/karma-server/pkg/logger"
)

// Mock Campaign Service
type mockCampaignService struct {
	campaigns map[uint]*models.Campaign
	nextID    uint
}

func newMockCampaignService() *mockCampaignService {
	return &mockCampaignService{campaigns: make(map[uint]*models.Campaign), nextID: 1}
}

func (m *mockCampaignService) Create(_ context.Context, mission, brandName, description string, targetAmount float64) (*models.Campaign, error) {
	campaign := &models.Campaign{
		ID: m.nextID, Mission: mission, BrandName: brandName,
		Description: description, TargetAmount: targetAmount,
		Status: models.CampaignStatusPending,
	}
	m.campaigns[m.nextID] = campaign
	m.nextID++
	return campaign, nil
}

func (m *mockCampaignService) Get(_ context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, exists := m.campaigns[campaignID]
	if !exists {
		return nil, gorm.ErrRecordNotFound
	}
	return campaign, nil
}

func (m *mockCampaignService) List(_ context.Context, status string) ([]models.Campaign, error) {
	var list []models.Campaign
	for _, c := range m.campaigns {
		if status == "" || c.Status == status {
			list = append(list, *c)
		}
	}
	return list, nil
}

func (m *mockCampaignService) Activate(_ context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, exists := m.campaigns[campaignID]
	if !exists {
		return nil, gorm.ErrRecordNotFound
	}
	if campaign.Status != models.CampaignStatusPending {
		return nil, campaignsvc.ErrInvalidTransition
	}
	campaign.Status = models.CampaignStatusActive
	return campaign, nil
}

func (m *mockCampaignService) RejectCampaign(_ context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, exists := m.campaigns[campaignID]
	if !exists {
		return nil, gorm.ErrRecordNotFound
	}
	if campaign.Status != models.CampaignStatusPending {
		return nil, campaignsvc.ErrInvalidTransition
	}
	campaign.Status = models.CampaignStatusRejected
	return campaign, nil
}

func (m *mockCampaignService) AddTask(_ context.Context, campaignID uint, description, kind string, impactPoints, karmaCoins int) (*models.Task, error) {
	if _, exists := m.campaigns[campaignID]; !exists {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Task{
		ID: 1, CampaignID: campaignID, Description: description,
		Kind: kind, ImpactPoints: impactPoints, KarmaCoins: karmaCoins,
	}, nil
}

// Mock Completion Service
type mockCompletionService struct {
	submitErr error
	reviewErr error
	pending   []models.TaskCompletion
}

func (m *mockCompletionService) Submit(_ context.Context, userID, campaignID, taskID uint, submittedData string) (*models.TaskCompletion, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.TaskCompletion{
		ID: 1, UserID: userID, CampaignID: campaignID, TaskID: taskID,
		SubmittedData: submittedData, Status: models.CompletionStatusPending,
	}, nil
}

func (m *mockCompletionService) Approve(_ context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error) {
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	return &models.TaskCompletion{ID: completionID, Status: models.CompletionStatusApproved, ReviewedBy: &reviewerID}, nil
}

func (m *mockCompletionService) Reject(_ context.Context, completionID, reviewerID uint) (*models.TaskCompletion, error) {
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	return &models.TaskCompletion{ID: completionID, Status: models.CompletionStatusRejected, ReviewedBy: &reviewerID}, nil
}

func (m *mockCompletionService) ListPending(_ context.Context) ([]models.TaskCompletion, error) {
	return m.pending, nil
}

// Mock Progress Reporter
type mockReporter struct {
	reports map[uint]*progress.Report
}

func (m *mockReporter) Report(_ context.Context, campaignID uint) (*progress.Report, error) {
	report, exists := m.reports[campaignID]
	if !exists {
		return nil, gorm.ErrRecordNotFound
	}
	return report, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockCampaignService, *mockCompletionService, *mockReporter) {
	campaignService := newMockCampaignService()
	completionService := &mockCompletionService{}
	reporter := &mockReporter{reports: make(map[uint]*progress.Report)}
	log := logger.New("debug", "text", "stdout")

	handler := NewHandlerWithInterfaces(campaignService, completionService, reporter, log)
	return handler, campaignService, completionService, reporter
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1")
	api.POST("/campaigns", handler.CreateCampaign)
	api.GET("/campaigns", handler.ListCampaigns)
	api.GET("/campaigns/:id", handler.GetCampaign)
	api.GET("/campaigns/:id/progress", handler.GetProgress)
	api.POST("/campaigns/:id/activate", handler.Activate)
	api.POST("/campaigns/:id/reject", handler.RejectCampaign)
	api.POST("/campaigns/:id/tasks", handler.AddTask)
	api.POST("/campaigns/:id/tasks/:taskID/completions", handler.SubmitCompletion)
	api.GET("/completions/pending", handler.ListPendingCompletions)
	api.POST("/completions/:id/approve", handler.ApproveCompletion)
	api.POST("/completions/:id/reject", handler.RejectCompletion)

	return router
}

// Tests

func TestCreateCampaign_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{
		"mission":       "Plant 1000 trees",
		"brand_name":    "GreenCo",
		"target_amount": 5000,
	})
	req, _ := http.NewRequest("POST", "/api/v1/campaigns", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	campaign := response["campaign"].(map[string]interface{})
	assert.Equal(t, "pending", campaign["status"])
}

func TestCreateCampaign_MissingMission(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("POST", "/api/v1/campaigns", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCampaigns_InvalidStatus(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/campaigns?status=bogus", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivate_Conflict(t *testing.T) {
	handler, campaignService, _, _ := setupTestHandler()
	router := setupRouter(handler)

	campaign, _ := campaignService.Create(context.Background(), "Mission", "Brand", "", 100)
	campaign.Status = models.CampaignStatusActive

	req, _ := http.NewRequest("POST", "/api/v1/campaigns/1/activate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetProgress_Success(t *testing.T) {
	handler, _, _, reporter := setupTestHandler()
	router := setupRouter(handler)

	reporter.reports[3] = &progress.Report{
		CampaignID:       3,
		Mission:          "Clean the river",
		Participants:     4,
		ApprovedCount:    6,
		ComputedProgress: 45,
		StoredProgress:   45,
	}

	req, _ := http.NewRequest("GET", "/api/v1/campaigns/3/progress", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	report := response["report"].(map[string]interface{})
	assert.Equal(t, float64(4), report["participants"])
}

func TestSubmitCompletion_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{"user_id": 7, "submitted_data": "https://example.com/post"})
	req, _ := http.NewRequest("POST", "/api/v1/campaigns/1/tasks/2/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSubmitCompletion_CampaignNotActive(t *testing.T) {
	handler, _, completionService, _ := setupTestHandler()
	router := setupRouter(handler)

	completionService.submitErr = completions.ErrCampaignNotActive

	body, _ := json.Marshal(map[string]interface{}{"user_id": 7})
	req, _ := http.NewRequest("POST", "/api/v1/campaigns/1/tasks/2/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApproveCompletion_AlreadyReviewed(t *testing.T) {
	handler, _, completionService, _ := setupTestHandler()
	router := setupRouter(handler)

	completionService.reviewErr = completions.ErrAlreadyReviewed

	body, _ := json.Marshal(map[string]interface{}{"reviewer_id": 1})
	req, _ := http.NewRequest("POST", "/api/v1/completions/9/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRejectCompletion_Success(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	body, _ := json.Marshal(map[string]interface{}{"reviewer_id": 1})
	req, _ := http.NewRequest("POST", "/api/v1/completions/9/reject", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	completion := response["completion"].(map[string]interface{})
	assert.Equal(t, "rejected", completion["status"])
}

func TestListPendingCompletions_Empty(t *testing.T) {
	handler, _, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/completions/pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(0), response["total"])
}
