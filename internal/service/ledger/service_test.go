package ledger

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karmahq/karma-server/internal/config"
	"github.com/karmahq/karma-server/internal/repository"
	"github.com/karmahq/karma-server/pkg/logger"
)

// setupTestStore creates an in-memory SQLite store for testing.
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

func newTestService(store *repository.Store, adminIDs ...string) *Service {
	return NewService(store, &config.AdminConfig{Identifiers: adminIDs}, logger.Nop())
}

func TestRegisterOrLogin_CreatesOnFirstSight(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store, "slack-ADMIN")
	ctx := context.Background()

	user, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}
	if user.ID == 0 {
		t.Error("Expected a persisted user with an id")
	}
	if user.IsAdmin {
		t.Error("Unlisted identifier must not be admin")
	}

	again, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice Renamed", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed on second call: %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("Expected same user on repeat login, got %d and %d", user.ID, again.ID)
	}
	if again.DisplayName != "Alice" {
		t.Errorf("Repeat login must not overwrite the profile, got %q", again.DisplayName)
	}
}

func TestRegisterOrLogin_AdminFlagFromConfig(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store, "slack-ADMIN")

	admin, err := service.RegisterOrLogin(context.Background(), "slack-ADMIN", "Root", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("Configured identifier must get the admin flag")
	}
}

func TestCreditAndDebit_KeepCachedBalanceInSync(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store)
	ctx := context.Background()

	user, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}

	err = store.InTransaction(func(tx *repository.Store) error {
		if _, err := Credit(tx, user.ID, 100, "task approved"); err != nil {
			return err
		}
		_, err := Debit(tx, user.ID, 30, "reward redeemed")
		return err
	})
	if err != nil {
		t.Fatalf("Credit/Debit transaction failed: %v", err)
	}

	cached, recomputed, err := service.VerifyBalance(ctx, user.ID)
	if err != nil {
		t.Fatalf("VerifyBalance failed: %v", err)
	}
	if cached != 70 || recomputed != 70 {
		t.Errorf("Expected cached and recomputed balance 70, got %d/%d", cached, recomputed)
	}
}

func TestDebit_FailsClosedOnInsufficientCoins(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store)
	ctx := context.Background()

	user, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}

	err = store.InTransaction(func(tx *repository.Store) error {
		if _, err := Credit(tx, user.ID, 20, "task approved"); err != nil {
			return err
		}
		_, err := Debit(tx, user.ID, 21, "too expensive")
		return err
	})
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("Expected ErrInsufficientCoins, got %v", err)
	}

	// Everything in the failed transaction rolled back, credit included
	cached, recomputed, err := service.VerifyBalance(ctx, user.ID)
	if err != nil {
		t.Fatalf("VerifyBalance failed: %v", err)
	}
	if cached != 0 || recomputed != 0 {
		t.Errorf("Expected rollback to zero, got %d/%d", cached, recomputed)
	}
}

func TestCreditAndDebit_RejectNonPositiveAmounts(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store)

	user, err := service.RegisterOrLogin(context.Background(), "slack-U1", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}

	err = store.InTransaction(func(tx *repository.Store) error {
		_, err := Credit(tx, user.ID, 0, "nothing")
		return err
	})
	if err == nil {
		t.Error("Expected error for zero credit")
	}

	err = store.InTransaction(func(tx *repository.Store) error {
		_, err := Debit(tx, user.ID, -5, "negative")
		return err
	})
	if err == nil {
		t.Error("Expected error for negative debit")
	}
}

func TestVerifyBalance_DetectsDrift(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store)
	ctx := context.Background()

	user, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}

	err = store.InTransaction(func(tx *repository.Store) error {
		_, err := Credit(tx, user.ID, 50, "task approved")
		return err
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	// Corrupt the cached value behind the ledger's back
	user, err = service.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	user.KarmaCoins = 9999
	if err := store.Users.Update(user); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cached, recomputed, err := service.VerifyBalance(ctx, user.ID)
	if err != nil {
		t.Fatalf("VerifyBalance failed: %v", err)
	}
	if cached != 9999 || recomputed != 50 {
		t.Errorf("Expected drift 9999 vs 50, got %d/%d", cached, recomputed)
	}
}

func TestAdjustContribution(t *testing.T) {
	store := setupTestStore(t)
	service := newTestService(store)
	ctx := context.Background()

	user, err := service.RegisterOrLogin(ctx, "slack-U1", "Alice", "")
	if err != nil {
		t.Fatalf("RegisterOrLogin failed: %v", err)
	}

	updated, err := service.AdjustContribution(ctx, user.ID, 420.5)
	if err != nil {
		t.Fatalf("AdjustContribution failed: %v", err)
	}
	if updated.ContributionValue != 420.5 {
		t.Errorf("Expected contribution 420.5, got %f", updated.ContributionValue)
	}
}
