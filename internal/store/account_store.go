package store

import (
	"fmt"
	"time"

	"github.com/soyeahso/chatpool/internal/domain"
)

// AccountStore mirrors the account list to SQLite so admin edits survive
// restarts. The in-memory pool stays the source of truth while running;
// the store is rewritten wholesale after every mutation.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates an account store using the given database.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Load returns all persisted accounts in their stored order.
func (s *AccountStore) Load() ([]domain.AccountConfig, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, secure_c_ses, host_c_oses, csesidx, config_id, expires_at, disabled
		 FROM accounts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	defer rows.Close()

	var list []domain.AccountConfig
	for rows.Next() {
		var acc domain.AccountConfig
		var disabled int
		if err := rows.Scan(
			&acc.ID, &acc.SecureCSes, &acc.HostCOses, &acc.CSesIdx,
			&acc.ConfigID, &acc.ExpiresAt, &disabled,
		); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		acc.Disabled = disabled != 0
		list = append(list, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return list, nil
}

// Save replaces every persisted account with the given list, preserving
// list order. The write is transactional; on error nothing changes.
func (s *AccountStore) Save(list []domain.AccountConfig) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin account save: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing accounts: %w", err)
	}

	now := time.Now().UTC().Format(time.DateTime)
	for i, acc := range list {
		disabled := 0
		if acc.Disabled {
			disabled = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO accounts (id, secure_c_ses, host_c_oses, csesidx, config_id, expires_at, disabled, position, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			acc.ID, acc.SecureCSes, acc.HostCOses, acc.CSesIdx,
			acc.ConfigID, acc.ExpiresAt, disabled, i, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving account %q: %w", acc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit account save: %w", err)
	}

	s.db.log.Debug().Int("count", len(list)).Msg("account mirror saved")
	return nil
}

// Count returns the number of persisted accounts.
func (s *AccountStore) Count() (int, error) {
	var n int
	if err := s.db.sql.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}
