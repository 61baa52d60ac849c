package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/mailsync/internal/database"
	"github.com/flowdesk/mailsync/pkg/models"
)

// testDB connects to the database configured via DATABASE_URL. These tests
// need a live Postgres and are skipped in short mode.
func testDB(t *testing.T) *CredentialStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	db, err := database.NewDB()
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return NewCredentialStore(db)
}

func TestCredentialLifecycle(t *testing.T) {
	creds := testDB(t)
	ctx := context.Background()

	userID := "test-" + uuid.NewString()
	t.Cleanup(func() { creds.Delete(ctx, userID) })

	// Absent credential reads as nil without error.
	got, err := creds.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)

	cred := models.Credential{
		UserID:       userID,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenExpiry:  time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, creds.Upsert(ctx, cred))

	got, err = creds.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Empty(t, got.WatchHistoryID)
	assert.Nil(t, got.WatchExpiration)

	// Second upsert replaces in place; still one row.
	watchExp := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
	cred.AccessToken = "access-2"
	cred.WatchHistoryID = "h-1"
	cred.WatchExpiration = &watchExp
	require.NoError(t, creds.Upsert(ctx, cred))

	got, err = creds.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "h-1", got.WatchHistoryID)
	require.NotNil(t, got.WatchExpiration)
	assert.True(t, watchExp.Equal(*got.WatchExpiration))

	require.NoError(t, creds.Delete(ctx, userID))
	assert.Error(t, creds.Delete(ctx, userID), "second delete finds nothing")
}

func TestMessageLifecycle(t *testing.T) {
	creds := testDB(t)
	messages := NewMessageStore(creds.db)
	ctx := context.Background()

	leadID := "test-lead-" + uuid.NewString()
	msgID := uuid.NewString()

	msg := models.Message{
		ID:        msgID,
		LeadID:    &leadID,
		UserID:    "test-user",
		Direction: models.DirectionOutbound,
		Subject:   "Quote",
		Content:   "Hello",
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		IsRead:    false,
		ThreadID:  "t-1",
	}
	require.NoError(t, messages.Insert(ctx, msg))

	listed, err := messages.ListByLead(ctx, leadID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, msgID, listed[0].ID)
	assert.Equal(t, models.DirectionOutbound, listed[0].Direction)
	assert.False(t, listed[0].IsRead)

	require.NoError(t, messages.MarkRead(ctx, msgID))

	listed, err = messages.ListByLead(ctx, leadID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].IsRead)

	assert.Error(t, messages.MarkRead(ctx, "missing-"+uuid.NewString()))
}
