package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karmahq/karma-server/internal/models"
)

// setupCampaignTestDB creates an in-memory SQLite database for testing.
func setupCampaignTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	gdb.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gdb}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return db
}

// createTestCampaign creates a campaign with one task of each kind.
func createTestCampaign(t *testing.T, repo *CampaignRepository, mission, status string) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		Mission:      mission,
		BrandName:    "GreenCo",
		TargetAmount: 1000,
		Status:       status,
		Tasks: []models.Task{
			{Description: "Share the campaign", Kind: models.TaskKindSocial, ImpactPoints: 20, KarmaCoins: 15},
			{Description: "Scan the event code", Kind: models.TaskKindCode, ImpactPoints: 10, KarmaCoins: 5},
		},
	}

	if err := repo.Create(campaign); err != nil {
		t.Fatalf("Failed to create test campaign: %v", err)
	}

	return campaign
}

func TestCampaignRepository_CreateWithTasks(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	created := createTestCampaign(t, repo, "Plant 1000 trees", models.CampaignStatusPending)

	campaign, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(campaign.Tasks) != 2 {
		t.Errorf("Expected 2 tasks preloaded, got %d", len(campaign.Tasks))
	}
	if campaign.Tasks[0].CampaignID != campaign.ID {
		t.Errorf("Expected task to reference campaign %d, got %d", campaign.ID, campaign.Tasks[0].CampaignID)
	}
}

func TestCampaignRepository_ListFiltersByStatus(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	createTestCampaign(t, repo, "Plant 1000 trees", models.CampaignStatusActive)
	createTestCampaign(t, repo, "Clean the river", models.CampaignStatusPending)

	active, err := repo.List(models.CampaignStatusActive)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("Expected 1 active campaign, got %d", len(active))
	}
	if active[0].Mission != "Plant 1000 trees" {
		t.Errorf("Expected tree campaign, got %s", active[0].Mission)
	}

	all, err := repo.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 campaigns without filter, got %d", len(all))
	}
}

func TestCampaignRepository_SetProgress(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	campaign := createTestCampaign(t, repo, "Plant 1000 trees", models.CampaignStatusActive)

	err := repo.SetProgress(campaign.ID, 100, models.CampaignStatusCompleted)
	if err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	updated, err := repo.GetByID(campaign.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Progress != 100 {
		t.Errorf("Expected progress 100, got %d", updated.Progress)
	}
	if updated.Status != models.CampaignStatusCompleted {
		t.Errorf("Expected status completed, got %s", updated.Status)
	}
	// Other columns untouched
	if updated.Mission != "Plant 1000 trees" {
		t.Errorf("Expected mission preserved, got %s", updated.Mission)
	}
}

func TestCampaignRepository_AddTask(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	campaign := createTestCampaign(t, repo, "Plant 1000 trees", models.CampaignStatusActive)

	task := &models.Task{
		CampaignID:   campaign.ID,
		Description:  "Donate a sapling",
		Kind:         models.TaskKindGeneric,
		ImpactPoints: 60,
		KarmaCoins:   40,
	}
	if err := repo.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	loaded, err := repo.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if loaded.Kind != models.TaskKindGeneric {
		t.Errorf("Expected generic task, got %s", loaded.Kind)
	}

	reloaded, err := repo.GetByID(campaign.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(reloaded.Tasks) != 3 {
		t.Errorf("Expected 3 tasks after AddTask, got %d", len(reloaded.Tasks))
	}
}

func TestCampaignRepository_GetByIDForUpdate(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	campaign := createTestCampaign(t, repo, "Plant 1000 trees", models.CampaignStatusActive)

	// SQLite takes the no-lock branch; the fetch itself must still work.
	locked, err := repo.GetByIDForUpdate(campaign.ID)
	if err != nil {
		t.Fatalf("GetByIDForUpdate failed: %v", err)
	}
	if locked.ID != campaign.ID || locked.Mission != "Plant 1000 trees" {
		t.Errorf("Unexpected campaign loaded: %+v", locked)
	}

	_, err = repo.GetByIDForUpdate(42)
	if !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestCampaignRepository_GetByID_NotFound(t *testing.T) {
	db := setupCampaignTestDB(t)
	repo := NewCampaignRepository(db)

	_, err := repo.GetByID(42)
	if !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}
