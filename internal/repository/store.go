package repository

// Store bundles all repositories over one connection. InTransaction yields a
// store whose repositories share a single transaction scope.
type Store struct {
	db           *DB
	Users        *UserRepository
	Transactions *TransactionRepository
	Rewards      *RewardRepository
	Campaigns    *CampaignRepository
	Completions  *CompletionRepository
	Backups      *BackupRepository
}

// NewStore creates a store over a database connection.
func NewStore(db *DB) *Store {
	return &Store{
		db:           db,
		Users:        NewUserRepository(db),
		Transactions: NewTransactionRepository(db),
		Rewards:      NewRewardRepository(db),
		Campaigns:    NewCampaignRepository(db),
		Completions:  NewCompletionRepository(db),
		Backups:      NewBackupRepository(db),
	}
}

// InTransaction runs fn against a transaction-scoped store. All repository
// calls made through the yielded store commit or roll back together.
func (s *Store) InTransaction(fn func(tx *Store) error) error {
	return s.db.InTransaction(func(tx *DB) error {
		return fn(NewStore(tx))
	})
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *DB {
	return s.db
}
