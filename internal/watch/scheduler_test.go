package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	creds   []models.Credential
	upserts []models.Credential
	listErr error
}

func (f *fakeStore) ListAll(context.Context) ([]models.Credential, error) {
	return f.creds, f.listErr
}

func (f *fakeStore) Upsert(_ context.Context, cred models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, cred)
	return nil
}

type fakeRegistrar struct {
	mu     sync.Mutex
	calls  int
	result google.WatchResult
	errFor map[string]error // keyed by access token
}

func (f *fakeRegistrar) RegisterWatch(_ context.Context, accessToken string) (google.WatchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errFor[accessToken]; ok {
		return google.WatchResult{}, err
	}
	return f.result, nil
}

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	errFor map[string]error // keyed by user id
}

func (f *fakeRefresher) Refresh(_ context.Context, cred models.Credential) (models.Credential, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errFor[cred.UserID]; ok {
		return models.Credential{}, err
	}
	cred.AccessToken = "refreshed-" + cred.UserID
	cred.TokenExpiry = cred.TokenExpiry.Add(time.Hour)
	return cred, nil
}

func ptr(t time.Time) *time.Time { return &t }

func TestRunOnceIsolatesAccountFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	validExpiry := now.Add(time.Hour)
	staleExpiry := now.Add(-time.Hour)

	store := &fakeStore{creds: []models.Credential{
		{UserID: "alice", AccessToken: "tok-alice", TokenExpiry: validExpiry},
		{UserID: "bob", AccessToken: "tok-bob", TokenExpiry: staleExpiry},
		{UserID: "carol", AccessToken: "tok-carol", TokenExpiry: validExpiry},
	}}
	registrar := &fakeRegistrar{result: google.WatchResult{
		HistoryID:  "h-1",
		Expiration: now.Add(7 * 24 * time.Hour),
	}}
	refresher := &fakeRefresher{errFor: map[string]error{
		"bob": errors.New("invalid_grant"),
	}}

	s := NewScheduler(store, registrar, refresher)
	s.now = func() time.Time { return now }

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Renewed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)

	// Results keep input order regardless of worker interleaving.
	assert.Equal(t, "alice", report.Results[0].UserID)
	assert.Equal(t, models.RenewalRenewed, report.Results[0].Status)
	assert.Equal(t, "bob", report.Results[1].UserID)
	assert.Equal(t, models.RenewalFailed, report.Results[1].Status)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.Equal(t, "carol", report.Results[2].UserID)
	assert.Equal(t, models.RenewalRenewed, report.Results[2].Status)

	// Bob never reached registration; the other two each persisted once.
	assert.Equal(t, 2, registrar.calls)
	assert.Len(t, store.upserts, 2)
	for _, up := range store.upserts {
		assert.Equal(t, "h-1", up.WatchHistoryID)
		require.NotNil(t, up.WatchExpiration)
		assert.Equal(t, now.Add(7*24*time.Hour), *up.WatchExpiration)
	}
}

func TestRunOnceSkipsWatchesOutsideLeadWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{creds: []models.Credential{
		// Expires within 48h: due.
		{UserID: "due", AccessToken: "tok-due", TokenExpiry: now.Add(time.Hour), WatchExpiration: ptr(now.Add(24 * time.Hour))},
		// Expires in 5 days: not due.
		{UserID: "fresh", AccessToken: "tok-fresh", TokenExpiry: now.Add(time.Hour), WatchExpiration: ptr(now.Add(5 * 24 * time.Hour))},
		// Never registered: due.
		{UserID: "never", AccessToken: "tok-never", TokenExpiry: now.Add(time.Hour)},
	}}
	registrar := &fakeRegistrar{result: google.WatchResult{
		HistoryID:  "h-2",
		Expiration: now.Add(7 * 24 * time.Hour),
	}}
	refresher := &fakeRefresher{}

	s := NewScheduler(store, registrar, refresher)
	s.now = func() time.Time { return now }

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Renewed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, models.RenewalSkipped, report.Results[1].Status)
	assert.Equal(t, 2, registrar.calls)
	assert.Equal(t, 0, refresher.calls, "valid tokens must not be refreshed")
}

func TestRunOnceRegistrationFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{creds: []models.Credential{
		{UserID: "alice", AccessToken: "tok-alice", TokenExpiry: now.Add(time.Hour)},
	}}
	registrar := &fakeRegistrar{errFor: map[string]error{
		"tok-alice": errors.New("watch registration failed with status 403"),
	}}

	s := NewScheduler(store, registrar, &fakeRefresher{})
	s.now = func() time.Time { return now }

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, store.upserts, "failed registration must not persist watch state")
}

func TestRunOnceEmptyStore(t *testing.T) {
	s := NewScheduler(&fakeStore{}, &fakeRegistrar{}, &fakeRefresher{})

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RenewalReport{Results: []models.AccountResult{}}, report)
}

func TestRunOnceListFailure(t *testing.T) {
	s := NewScheduler(&fakeStore{listErr: errors.New("connection refused")}, &fakeRegistrar{}, &fakeRefresher{})

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
}
