package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/pkg/models"
)

const (
	// DefaultRenewalLead renews watches expiring within this window.
	DefaultRenewalLead = 48 * time.Hour
	// DefaultWorkers bounds concurrent account processing. Accounts share no
	// mutable state, so the pool size only affects throughput.
	DefaultWorkers = 4
)

// CredentialStore is the slice of the credential store the scheduler needs.
type CredentialStore interface {
	ListAll(ctx context.Context) ([]models.Credential, error)
	Upsert(ctx context.Context, cred models.Credential) error
}

// WatchRegistrar registers a push subscription with the provider.
type WatchRegistrar interface {
	RegisterWatch(ctx context.Context, accessToken string) (google.WatchResult, error)
}

// TokenRefresher refreshes a stale credential before the registration call.
type TokenRefresher interface {
	Refresh(ctx context.Context, cred models.Credential) (models.Credential, error)
}

// Scheduler runs one watch renewal pass over every stored credential. It is a
// batch job invoked by an external timer, not a loop: each invocation decides
// per account whether renewal is due, renews, and reports. One account's
// failure never aborts the batch.
type Scheduler struct {
	store     CredentialStore
	registrar WatchRegistrar
	refresher TokenRefresher
	lead      time.Duration
	workers   int
	now       func() time.Time
}

// NewScheduler creates a renewal scheduler with default lead window and pool size.
func NewScheduler(store CredentialStore, registrar WatchRegistrar, refresher TokenRefresher) *Scheduler {
	return &Scheduler{
		store:     store,
		registrar: registrar,
		refresher: refresher,
		lead:      DefaultRenewalLead,
		workers:   DefaultWorkers,
		now:       time.Now,
	}
}

// SetRenewalLead overrides the due-ness window.
func (s *Scheduler) SetRenewalLead(lead time.Duration) { s.lead = lead }

// SetWorkers overrides the worker pool size.
func (s *Scheduler) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// RunOnce processes every stored credential independently and returns the
// aggregate report. The report is the batch's only external contract; callers
// alert on Failed > 0.
func (s *Scheduler) RunOnce(ctx context.Context) (models.RenewalReport, error) {
	creds, err := s.store.ListAll(ctx)
	if err != nil {
		return models.RenewalReport{}, fmt.Errorf("failed to list credentials: %w", err)
	}

	log.Info().Int("accounts", len(creds)).Msg("Starting watch renewal batch")

	results := make([]models.AccountResult, len(creds))

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(creds) {
		workers = len(creds)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.processAccount(ctx, creds[i])
			}
		}()
	}
	for i := range creds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report := models.RenewalReport{Results: results}
	for _, res := range results {
		switch res.Status {
		case models.RenewalRenewed:
			report.Renewed++
		case models.RenewalSkipped:
			report.Skipped++
		case models.RenewalFailed:
			report.Failed++
		}
	}

	log.Info().
		Int("renewed", report.Renewed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("Watch renewal batch complete")

	return report, nil
}

// processAccount handles a single credential. Every error is recorded in the
// result and recovery is local; nothing propagates to the batch.
func (s *Scheduler) processAccount(ctx context.Context, cred models.Credential) models.AccountResult {
	now := s.now()

	if !cred.WatchDue(now, s.lead) {
		return models.AccountResult{UserID: cred.UserID, Status: models.RenewalSkipped}
	}

	if cred.TokenExpired(now) {
		refreshed, err := s.refresher.Refresh(ctx, cred)
		if err != nil {
			log.Warn().Str("user_id", cred.UserID).Err(err).Msg("Token refresh failed during watch renewal")
			return models.AccountResult{UserID: cred.UserID, Status: models.RenewalFailed, Error: err.Error()}
		}
		cred = refreshed
	}

	watch, err := s.registrar.RegisterWatch(ctx, cred.AccessToken)
	if err != nil {
		log.Warn().Str("user_id", cred.UserID).Err(err).Msg("Watch registration failed")
		return models.AccountResult{UserID: cred.UserID, Status: models.RenewalFailed, Error: err.Error()}
	}

	expiration := watch.Expiration
	cred.WatchHistoryID = watch.HistoryID
	cred.WatchExpiration = &expiration
	if err := s.store.Upsert(ctx, cred); err != nil {
		log.Warn().Str("user_id", cred.UserID).Err(err).Msg("Failed to persist renewed watch")
		return models.AccountResult{UserID: cred.UserID, Status: models.RenewalFailed, Error: err.Error()}
	}

	log.Debug().
		Str("user_id", cred.UserID).
		Str("history_id", watch.HistoryID).
		Time("watch_expiration", expiration).
		Msg("Renewed watch subscription")

	return models.AccountResult{UserID: cred.UserID, Status: models.RenewalRenewed}
}
