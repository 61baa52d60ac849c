package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/pkg/models"
)

// RefreshError is returned when the provider refuses a refresh-token
// exchange. It is terminal for the account until the user re-authenticates.
type RefreshError struct {
	UserID string
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for user %s: %v", e.UserID, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// CredentialWriter persists refreshed credentials. Upserts are keyed by user
// id, so concurrent refreshers racing on the same row leave a valid token
// behind either way.
type CredentialWriter interface {
	Upsert(ctx context.Context, cred models.Credential) error
}

// TokenExchanger performs the refresh-token grant against the provider.
type TokenExchanger interface {
	RefreshToken(ctx context.Context, refreshToken string) (google.TokenResponse, error)
}

// Refresher exchanges a stale credential's refresh token for a new access
// token and persists the result. Callers are responsible for checking expiry
// first; refreshing a still-valid token is harmless.
type Refresher struct {
	store    CredentialWriter
	provider TokenExchanger
	now      func() time.Time
}

// NewRefresher creates a token refresher.
func NewRefresher(store CredentialWriter, provider TokenExchanger) *Refresher {
	return &Refresher{
		store:    store,
		provider: provider,
		now:      time.Now,
	}
}

// Refresh exchanges the credential's refresh token and upserts the new access
// token and expiry. Exactly one store write happens on success; none on
// failure, so a failed refresh leaves the stored credential untouched.
func (r *Refresher) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	tokenData, err := r.provider.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return models.Credential{}, &RefreshError{UserID: cred.UserID, Err: err}
	}

	cred.AccessToken = tokenData.AccessToken
	cred.TokenExpiry = r.now().Add(time.Duration(tokenData.ExpiresIn) * time.Second)
	// Google only rotates the refresh token in rare cases; keep the old one
	// unless a new one came back.
	if tokenData.RefreshToken != "" {
		cred.RefreshToken = tokenData.RefreshToken
	}

	if err := r.store.Upsert(ctx, cred); err != nil {
		return models.Credential{}, fmt.Errorf("failed to persist refreshed credential for user %s: %w", cred.UserID, err)
	}

	log.Debug().
		Str("user_id", cred.UserID).
		Time("token_expiry", cred.TokenExpiry).
		Msg("Refreshed access token")

	return cred, nil
}
