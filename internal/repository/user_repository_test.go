package repository

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karmahq/karma-server/internal/models"
)

// setupUserTestDB creates an in-memory SQLite database for testing.
func setupUserTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Enable foreign key constraints (SQLite default is off)
	gdb.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gdb}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return db
}

// createTestUser creates a test user in the database.
func createTestUser(t *testing.T, repo *UserRepository, externalID, displayName string) *models.User {
	t.Helper()

	user := &models.User{
		ExternalID:  externalID,
		DisplayName: displayName,
		Email:       externalID + "@example.com",
	}

	if err := repo.Create(user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	created := createTestUser(t, repo, "slack-U1", "Alice")

	byID, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.DisplayName != "Alice" {
		t.Errorf("Expected display name Alice, got %s", byID.DisplayName)
	}

	byExternal, err := repo.GetByExternalID("slack-U1")
	if err != nil {
		t.Fatalf("GetByExternalID failed: %v", err)
	}
	if byExternal.ID != created.ID {
		t.Errorf("Expected user ID %d, got %d", created.ID, byExternal.ID)
	}
}

func TestUserRepository_GetByExternalID_NotFound(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByExternalID("ghost")
	if err == nil {
		t.Fatal("Expected error for unknown external ID")
	}
	if !IsNotFound(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestUserRepository_DuplicateExternalID(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	createTestUser(t, repo, "slack-U1", "Alice")

	err := repo.Create(&models.User{ExternalID: "slack-U1", DisplayName: "Impostor"})
	if err == nil {
		t.Fatal("Expected unique constraint violation for duplicate external ID")
	}
}

func TestUserRepository_SocialAccounts(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	user := createTestUser(t, repo, "slack-U1", "Alice")

	accounts := []models.SocialAccount{
		{UserID: user.ID, Platform: "instagram", Handle: "@alice"},
		{UserID: user.ID, Platform: "tiktok", Handle: "@alice.codes"},
	}
	for i := range accounts {
		if err := repo.AddSocialAccount(&accounts[i]); err != nil {
			t.Fatalf("AddSocialAccount failed: %v", err)
		}
	}

	linked, err := repo.GetSocialAccounts(user.ID)
	if err != nil {
		t.Fatalf("GetSocialAccounts failed: %v", err)
	}
	if len(linked) != 2 {
		t.Errorf("Expected 2 social accounts, got %d", len(linked))
	}
}

func TestUserRepository_RedeemedCodes(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	user := createTestUser(t, repo, "slack-U1", "Alice")

	record := &models.RedeemedCode{
		UserID:     user.ID,
		RewardID:   1,
		RewardName: "Coffee Voucher",
		Code:       "CAFE-123",
	}
	if err := repo.CreateRedeemedCode(record); err != nil {
		t.Fatalf("CreateRedeemedCode failed: %v", err)
	}
	if record.RedeemedAt.IsZero() {
		t.Error("Expected RedeemedAt to be stamped on create")
	}

	codes, err := repo.GetRedeemedCodes(user.ID)
	if err != nil {
		t.Fatalf("GetRedeemedCodes failed: %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "CAFE-123" {
		t.Errorf("Expected one code CAFE-123, got %+v", codes)
	}
}

func TestUserRepository_DeleteUserData(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)
	txnRepo := NewTransactionRepository(db)

	alice := createTestUser(t, repo, "slack-U1", "Alice")
	bob := createTestUser(t, repo, "slack-U2", "Bob")

	for _, u := range []*models.User{alice, bob} {
		err := txnRepo.Append(&models.Transaction{
			Reference: "ref-" + u.ExternalID,
			UserID:    u.ID,
			Amount:    10,
			Type:      models.TransactionTypeEarn,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := repo.DeleteUserData(alice.ID); err != nil {
		t.Fatalf("DeleteUserData failed: %v", err)
	}

	aliceTxns, err := txnRepo.ListByUser(alice.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(aliceTxns) != 0 {
		t.Errorf("Expected Alice's transactions to be gone, got %d", len(aliceTxns))
	}

	bobTxns, err := txnRepo.ListByUser(bob.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(bobTxns) != 1 {
		t.Errorf("Expected Bob's transactions untouched, got %d", len(bobTxns))
	}

	// The user row itself survives
	if _, err := repo.GetByID(alice.ID); err != nil {
		t.Errorf("Expected user row to survive DeleteUserData: %v", err)
	}
}
