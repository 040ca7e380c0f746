//nolint:noctx // Test file uses http.NewRequest for simplicity
package league

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	leaguesvc "github.com/karmahq/karma-server/internal/service/league"
	"github.com/karmahq/karma-server/pkg/logger"
)

// Mock League Service
type mockLeagueService struct {
	standings   map[uint]*leaguesvc.Standing
	leaderboard []leaguesvc.LeaderboardEntry
	failErr     error
	gotLimit    int
}

func (m *mockLeagueService) GetStanding(_ context.Context, userID uint) (*leaguesvc.Standing, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	standing, exists := m.standings[userID]
	if !exists {
		return &leaguesvc.Standing{UserID: userID, Tier: "Bronze"}, nil
	}
	return standing, nil
}

func (m *mockLeagueService) GetLeaderboard(_ context.Context, limit int) ([]leaguesvc.LeaderboardEntry, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.gotLimit = limit
	if limit < len(m.leaderboard) {
		return m.leaderboard[:limit], nil
	}
	return m.leaderboard, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockLeagueService) {
	service := &mockLeagueService{standings: make(map[uint]*leaguesvc.Standing)}
	log := logger.New("debug", "text", "stdout")

	handler := NewHandlerWithInterfaces(service, log)
	return handler, service
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1")
	api.GET("/league/users/:id", handler.GetStanding)
	api.GET("/league/leaderboard", handler.GetLeaderboard)

	return router
}

// Tests

func TestGetStanding_Success(t *testing.T) {
	handler, service := setupTestHandler()
	router := setupRouter(handler)

	service.standings[1] = &leaguesvc.Standing{
		UserID:         1,
		WeeklyCoins:    250,
		Tier:           "Silver",
		ProgressToNext: 75,
		NextTier:       "Gold",
		WeekStart:      "2025-06-02",
	}

	req, _ := http.NewRequest("GET", "/api/v1/league/users/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	standing := response["standing"].(map[string]interface{})
	assert.Equal(t, "Silver", standing["tier"])
	assert.Equal(t, float64(75), standing["progress_to_next"])
	assert.Contains(t, response, "generated_at")
}

func TestGetStanding_InvalidID(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/league/users/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStanding_ServiceError(t *testing.T) {
	handler, service := setupTestHandler()
	router := setupRouter(handler)

	service.failErr = errors.New("redis unavailable")

	req, _ := http.NewRequest("GET", "/api/v1/league/users/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetLeaderboard_DefaultLimit(t *testing.T) {
	handler, service := setupTestHandler()
	router := setupRouter(handler)

	service.leaderboard = []leaguesvc.LeaderboardEntry{
		{Rank: 1, UserID: 2, DisplayName: "Bob", WeeklyCoins: 300, Tier: "Gold"},
		{Rank: 2, UserID: 1, DisplayName: "Alice", WeeklyCoins: 120, Tier: "Silver"},
	}

	req, _ := http.NewRequest("GET", "/api/v1/league/leaderboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, service.gotLimit)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), response["total_entries"])

	entries := response["leaderboard"].([]interface{})
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "Bob", first["display_name"])
}

func TestGetLeaderboard_CustomLimit(t *testing.T) {
	handler, service := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/league/leaderboard?limit=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, service.gotLimit)
}

func TestGetLeaderboard_InvalidLimit(t *testing.T) {
	handler, _ := setupTestHandler()
	router := setupRouter(handler)

	for _, limit := range []string{"0", "-5", "1001", "abc"} {
		req, _ := http.NewRequest("GET", "/api/v1/league/leaderboard?limit="+limit, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}
