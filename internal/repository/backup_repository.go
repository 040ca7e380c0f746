package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/karmahq/karma-server/internal/models"
)

// Dataset is a full snapshot of every persisted collection, in a shape that
// can be re-inserted verbatim.
type Dataset struct {
	Users            []models.User           `json:"users"`
	SocialAccounts   []models.SocialAccount  `json:"social_accounts"`
	Transactions     []models.Transaction    `json:"transactions"`
	RewardCategories []models.RewardCategory `json:"reward_categories"`
	Rewards          []models.Reward         `json:"rewards"`
	RewardCodes      []models.RewardCode     `json:"reward_codes"`
	RedeemedCodes    []models.RedeemedCode   `json:"redeemed_codes"`
	Campaigns        []models.Campaign       `json:"campaigns"`
	Tasks            []models.Task           `json:"tasks"`
	Completions      []models.TaskCompletion `json:"completions"`
}

// UserDataset is the narrower per-user snapshot: the ledger row plus the
// user's transactions, completions, and redeemed codes.
type UserDataset struct {
	User          models.User             `json:"user"`
	Transactions  []models.Transaction    `json:"transactions"`
	Completions   []models.TaskCompletion `json:"completions"`
	RedeemedCodes []models.RedeemedCode   `json:"redeemed_codes"`
}

// BackupRepository moves whole datasets in and out of the database.
type BackupRepository struct {
	db *DB
}

// NewBackupRepository creates a new backup repository.
func NewBackupRepository(db *DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// ExportAll reads every collection into a dataset.
func (r *BackupRepository) ExportAll() (*Dataset, error) {
	ds := &Dataset{}
	for _, step := range []struct {
		name string
		dest interface{}
	}{
		{"users", &ds.Users},
		{"social accounts", &ds.SocialAccounts},
		{"transactions", &ds.Transactions},
		{"reward categories", &ds.RewardCategories},
		{"rewards", &ds.Rewards},
		{"reward codes", &ds.RewardCodes},
		{"redeemed codes", &ds.RedeemedCodes},
		{"campaigns", &ds.Campaigns},
		{"tasks", &ds.Tasks},
		{"completions", &ds.Completions},
	} {
		if err := r.db.Order("id ASC").Find(step.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}
	return ds, nil
}

// ExportUser reads one user's snapshot.
func (r *BackupRepository) ExportUser(userID uint) (*UserDataset, error) {
	ds := &UserDataset{}
	if err := r.db.First(&ds.User, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to export user %d: %w", userID, err)
	}
	for _, step := range []struct {
		name string
		dest interface{}
	}{
		{"transactions", &ds.Transactions},
		{"completions", &ds.Completions},
		{"redeemed codes", &ds.RedeemedCodes},
	} {
		if err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(step.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to export %s for user %d: %w", step.name, userID, err)
		}
	}
	return ds, nil
}

// ReplaceAll wipes the database and inserts the dataset, all in one
// transaction. Rows keep their original primary keys; association rows are
// inserted through their own collections, never implicitly.
func (r *BackupRepository) ReplaceAll(ds *Dataset) error {
	return r.db.InTransaction(func(tx *DB) error {
		// Children first so foreign keys never dangle mid-wipe.
		for _, model := range []interface{}{
			&models.TaskCompletion{},
			&models.Task{},
			&models.Campaign{},
			&models.RedeemedCode{},
			&models.RewardCode{},
			&models.Reward{},
			&models.RewardCategory{},
			&models.Transaction{},
			&models.SocialAccount{},
			&models.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear collection: %w", err)
			}
		}

		// Parents first on the way back in.
		for _, step := range []struct {
			name string
			rows interface{}
			size int
		}{
			{"users", ds.Users, len(ds.Users)},
			{"social accounts", ds.SocialAccounts, len(ds.SocialAccounts)},
			{"transactions", ds.Transactions, len(ds.Transactions)},
			{"reward categories", ds.RewardCategories, len(ds.RewardCategories)},
			{"rewards", ds.Rewards, len(ds.Rewards)},
			{"reward codes", ds.RewardCodes, len(ds.RewardCodes)},
			{"redeemed codes", ds.RedeemedCodes, len(ds.RedeemedCodes)},
			{"campaigns", ds.Campaigns, len(ds.Campaigns)},
			{"tasks", ds.Tasks, len(ds.Tasks)},
			{"completions", ds.Completions, len(ds.Completions)},
		} {
			if step.size == 0 {
				continue
			}
			err := tx.Omit(clause.Associations).CreateInBatches(step.rows, 100).Error
			if err != nil {
				return fmt.Errorf("failed to restore %s: %w", step.name, err)
			}
		}
		return nil
	})
}

// RestoreUser removes one user's rows and re-inserts the snapshot. Rows of
// other users are untouched.
func (r *BackupRepository) RestoreUser(ds *UserDataset) error {
	userID := ds.User.ID
	if userID == 0 {
		return fmt.Errorf("user snapshot carries no user id")
	}

	return r.db.InTransaction(func(tx *DB) error {
		users := NewUserRepository(tx)
		if err := users.DeleteUserData(userID); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&ds.User).Error; err != nil {
			return fmt.Errorf("failed to restore user %d: %w", userID, err)
		}
		for _, step := range []struct {
			name string
			rows interface{}
			size int
		}{
			{"transactions", ds.Transactions, len(ds.Transactions)},
			{"completions", ds.Completions, len(ds.Completions)},
			{"redeemed codes", ds.RedeemedCodes, len(ds.RedeemedCodes)},
		} {
			if step.size == 0 {
				continue
			}
			err := tx.Omit(clause.Associations).CreateInBatches(step.rows, 100).Error
			if err != nil {
				return fmt.Errorf("failed to restore %s for user %d: %w", step.name, userID, err)
			}
		}
		return nil
	})
}
