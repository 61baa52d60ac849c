package compose

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowdesk/mailsync/internal/provider/google"
	"github.com/flowdesk/mailsync/pkg/models"
)

// CredentialStore is the slice of the credential store the composer needs.
// Get returns nil when no credential exists for the user.
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*models.Credential, error)
}

// MessageStore records outbound messages after a successful send.
type MessageStore interface {
	Insert(ctx context.Context, msg models.Message) error
}

// TokenRefresher refreshes a stale credential inline before the send.
type TokenRefresher interface {
	Refresh(ctx context.Context, cred models.Credential) (models.Credential, error)
}

// MailSender is the provider surface the composer uses.
type MailSender interface {
	GetSignature(ctx context.Context, accessToken string) (string, error)
	SendMessage(ctx context.Context, accessToken, raw, threadID string) (google.SendResponse, error)
}

// SendRequest describes one outbound message.
type SendRequest struct {
	UserID      string
	LeadID      *string
	To          string
	Subject     string
	Body        string
	Attachments []models.Attachment
	// ThreadID threads the reply into an existing conversation when set.
	ThreadID string
}

// Composer builds and transmits MIME email on behalf of a connected user and
// records the outcome as an outbound message row.
type Composer struct {
	creds     CredentialStore
	messages  MessageStore
	refresher TokenRefresher
	provider  MailSender
	now       func() time.Time
}

// NewComposer creates a message composer.
func NewComposer(creds CredentialStore, messages MessageStore, refresher TokenRefresher, provider MailSender) *Composer {
	return &Composer{
		creds:     creds,
		messages:  messages,
		refresher: refresher,
		provider:  provider,
		now:       time.Now,
	}
}

// Send transmits the message and logs it. Failure modes are distinct:
// *NotConnectedError and *tokens.RefreshError mean nothing was sent,
// *TransportError means the provider rejected the send, and *LogWriteError
// means the mail went out but the local row failed — callers must not
// re-send on a LogWriteError.
func (c *Composer) Send(ctx context.Context, req SendRequest) (models.SendResult, error) {
	cred, err := c.creds.Get(ctx, req.UserID)
	if err != nil {
		return models.SendResult{}, err
	}
	if cred == nil {
		return models.SendResult{}, &NotConnectedError{UserID: req.UserID}
	}

	active := *cred
	if active.TokenExpired(c.now()) {
		refreshed, err := c.refresher.Refresh(ctx, active)
		if err != nil {
			return models.SendResult{}, err
		}
		active = refreshed
	}

	// Signature fetch is cosmetic; degrade to an empty signature on failure.
	signature, err := c.provider.GetSignature(ctx, active.AccessToken)
	if err != nil {
		log.Warn().Str("user_id", req.UserID).Err(err).Msg("Signature fetch failed, sending without signature")
		signature = ""
	}

	envelope, err := buildMIME(req.To, req.Subject, req.Body, signature, req.Attachments)
	if err != nil {
		return models.SendResult{}, err
	}

	sent, err := c.provider.SendMessage(ctx, active.AccessToken, encodeRaw(envelope), req.ThreadID)
	if err != nil {
		return models.SendResult{}, &TransportError{Err: err}
	}

	result := models.SendResult{
		ProviderID: sent.ID,
		ThreadID:   sent.ThreadID,
	}

	// Capture the provider-assigned thread id even when none was supplied,
	// so subsequent replies land in the same conversation.
	msg := models.Message{
		ID:        uuid.NewString(),
		LeadID:    req.LeadID,
		UserID:    req.UserID,
		Direction: models.DirectionOutbound,
		Subject:   req.Subject,
		Content:   req.Body,
		Timestamp: c.now(),
		IsRead:    true,
		ThreadID:  sent.ThreadID,
	}
	if err := c.messages.Insert(ctx, msg); err != nil {
		// The mail is already out; report the bookkeeping failure distinctly.
		return result, &LogWriteError{ProviderID: sent.ID, Err: err}
	}

	result.LocalID = msg.ID
	result.Logged = true

	log.Info().
		Str("user_id", req.UserID).
		Str("provider_id", sent.ID).
		Str("thread_id", sent.ThreadID).
		Int("attachments", len(req.Attachments)).
		Msg("Message sent")

	return result, nil
}
