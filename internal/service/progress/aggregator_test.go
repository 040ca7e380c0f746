package progress

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karmahq/karma-server/internal/models"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// setupTestStore creates an in-memory SQLite database for testing.
func setupTestStore(t *testing.T) *repository.Store {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	gdb.Exec("PRAGMA foreign_keys = ON")

	db := &repository.DB{DB: gdb}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return repository.NewStore(db)
}

func createUser(t *testing.T, store *repository.Store, externalID string) *models.User {
	t.Helper()

	user := &models.User{ExternalID: externalID, DisplayName: externalID, Email: externalID + "@example.com"}
	if err := store.Users.Create(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func createCampaign(t *testing.T, store *repository.Store, progress int, status string) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		Mission:      "Clean the river",
		BrandName:    "AquaCorp",
		TargetAmount: 2000,
		Progress:     progress,
		Status:       status,
	}
	if err := store.Campaigns.Create(campaign); err != nil {
		t.Fatalf("Failed to create campaign: %v", err)
	}
	return campaign
}

func addCompletion(t *testing.T, store *repository.Store, userID, campaignID uint, impact int, status string) {
	t.Helper()

	completion := &models.TaskCompletion{
		UserID:       userID,
		CampaignID:   campaignID,
		TaskID:       1,
		ImpactPoints: impact,
		Status:       status,
		CompletedAt:  time.Now(),
	}
	if err := store.Completions.Create(completion); err != nil {
		t.Fatalf("Failed to create completion: %v", err)
	}
}

func TestReport_AggregatesCompletionLog(t *testing.T) {
	store := setupTestStore(t)
	agg := NewAggregator(store, logger.Nop())

	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	campaign := createCampaign(t, store, 30, models.CampaignStatusActive)

	addCompletion(t, store, alice.ID, campaign.ID, 20, models.CompletionStatusApproved)
	addCompletion(t, store, alice.ID, campaign.ID, 10, models.CompletionStatusApproved)
	addCompletion(t, store, bob.ID, campaign.ID, 50, models.CompletionStatusPending)
	addCompletion(t, store, bob.ID, campaign.ID, 40, models.CompletionStatusRejected)

	report, err := agg.Report(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if report.Participants != 2 {
		t.Errorf("Expected 2 participants, got %d", report.Participants)
	}
	if report.ApprovedCount != 2 {
		t.Errorf("Expected 2 approved completions, got %d", report.ApprovedCount)
	}
	if report.TotalImpactPoints != 30 {
		t.Errorf("Expected 30 impact points, got %d", report.TotalImpactPoints)
	}
	if report.ComputedProgress != 30 {
		t.Errorf("Expected computed progress 30, got %d", report.ComputedProgress)
	}
	if report.StoredProgress != 30 {
		t.Errorf("Expected stored progress 30, got %d", report.StoredProgress)
	}
}

func TestReport_ClampsAtHundred(t *testing.T) {
	store := setupTestStore(t)
	agg := NewAggregator(store, logger.Nop())

	alice := createUser(t, store, "alice")
	campaign := createCampaign(t, store, 100, models.CampaignStatusCompleted)

	addCompletion(t, store, alice.ID, campaign.ID, 80, models.CompletionStatusApproved)
	addCompletion(t, store, alice.ID, campaign.ID, 70, models.CompletionStatusApproved)

	report, err := agg.Report(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.TotalImpactPoints != 150 {
		t.Errorf("Expected raw sum 150, got %d", report.TotalImpactPoints)
	}
	if report.ComputedProgress != 100 {
		t.Errorf("Expected computed progress clamped to 100, got %d", report.ComputedProgress)
	}
}

func TestReconcile_RepairsDrift(t *testing.T) {
	store := setupTestStore(t)
	agg := NewAggregator(store, logger.Nop())

	alice := createUser(t, store, "alice")

	// Stored counter drifted below the log.
	drifted := createCampaign(t, store, 10, models.CampaignStatusActive)
	addCompletion(t, store, alice.ID, drifted.ID, 40, models.CompletionStatusApproved)

	// Healthy campaign, no repair expected.
	healthy := createCampaign(t, store, 25, models.CampaignStatusActive)
	addCompletion(t, store, alice.ID, healthy.ID, 25, models.CompletionStatusApproved)

	repaired, err := agg.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if repaired != 1 {
		t.Errorf("Expected 1 repair, got %d", repaired)
	}

	fresh, _ := store.Campaigns.GetByID(drifted.ID)
	if fresh.Progress != 40 {
		t.Errorf("Expected repaired progress 40, got %d", fresh.Progress)
	}
	if fresh.Status != models.CampaignStatusActive {
		t.Errorf("Repair below 100 must not change status, got %q", fresh.Status)
	}
}

func TestReconcile_FlipsActiveCampaignAtHundred(t *testing.T) {
	store := setupTestStore(t)
	agg := NewAggregator(store, logger.Nop())

	alice := createUser(t, store, "alice")
	campaign := createCampaign(t, store, 90, models.CampaignStatusActive)
	addCompletion(t, store, alice.ID, campaign.ID, 120, models.CompletionStatusApproved)

	if _, err := agg.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	fresh, _ := store.Campaigns.GetByID(campaign.ID)
	if fresh.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", fresh.Progress)
	}
	if fresh.Status != models.CampaignStatusCompleted {
		t.Errorf("Expected completed status, got %q", fresh.Status)
	}
}
