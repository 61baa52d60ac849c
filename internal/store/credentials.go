package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowdesk/mailsync/pkg/models"
)

// CredentialStore persists per-user OAuth credentials and watch metadata.
// The table enforces one row per user; every write is an upsert keyed by
// user_id, which makes concurrent refreshers safe (last writer wins and both
// wrote validly obtained tokens).
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore creates a credential store.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get retrieves the credential for a user, or nil when the user has never
// connected.
func (s *CredentialStore) Get(ctx context.Context, userID string) (*models.Credential, error) {
	query := `
	SELECT user_id, access_token, refresh_token, token_expiry, watch_history_id, watch_expiration,
	       created_at, updated_at
	FROM gmail_credentials
	WHERE user_id = $1
	`

	var cred models.Credential
	var historyID sql.NullString
	var watchExpiration sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.TokenExpiry,
		&historyID, &watchExpiration, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if historyID.Valid {
		cred.WatchHistoryID = historyID.String
	}
	if watchExpiration.Valid {
		t := watchExpiration.Time
		cred.WatchExpiration = &t
	}

	return &cred, nil
}

// Upsert inserts or replaces the credential for a user.
func (s *CredentialStore) Upsert(ctx context.Context, cred models.Credential) error {
	query := `
	INSERT INTO gmail_credentials (
		user_id, access_token, refresh_token, token_expiry, watch_history_id, watch_expiration,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, NOW(), NOW()
	)
	ON CONFLICT (user_id) DO UPDATE SET
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		token_expiry = EXCLUDED.token_expiry,
		watch_history_id = EXCLUDED.watch_history_id,
		watch_expiration = EXCLUDED.watch_expiration,
		updated_at = NOW()
	`

	var historyID interface{}
	if cred.WatchHistoryID != "" {
		historyID = cred.WatchHistoryID
	}
	var watchExpiration interface{}
	if cred.WatchExpiration != nil {
		watchExpiration = *cred.WatchExpiration
	}

	_, err := s.db.ExecContext(ctx, query,
		cred.UserID, cred.AccessToken, cred.RefreshToken, cred.TokenExpiry,
		historyID, watchExpiration,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// ListAll returns every stored credential; the renewal batch iterates this.
func (s *CredentialStore) ListAll(ctx context.Context) ([]models.Credential, error) {
	query := `
	SELECT user_id, access_token, refresh_token, token_expiry, watch_history_id, watch_expiration,
	       created_at, updated_at
	FROM gmail_credentials
	ORDER BY user_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var cred models.Credential
		var historyID sql.NullString
		var watchExpiration sql.NullTime
		if err := rows.Scan(
			&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.TokenExpiry,
			&historyID, &watchExpiration, &cred.CreatedAt, &cred.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if historyID.Valid {
			cred.WatchHistoryID = historyID.String
		}
		if watchExpiration.Valid {
			t := watchExpiration.Time
			cred.WatchExpiration = &t
		}
		creds = append(creds, cred)
	}

	return creds, rows.Err()
}

// Delete removes a user's credential on explicit disconnect.
func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM gmail_credentials WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no credential found for user %s", userID)
	}
	return nil
}
