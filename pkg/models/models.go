package models

import (
	"time"
)

// Direction indicates whether a message was received or sent by the account owner.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Credential holds the stored OAuth token set and push-subscription metadata
// for one user. At most one Credential exists per user; writes are upserts
// keyed by UserID.
type Credential struct {
	UserID          string     `json:"user_id" db:"user_id"`
	AccessToken     string     `json:"-" db:"access_token"`
	RefreshToken    string     `json:"-" db:"refresh_token"`
	TokenExpiry     time.Time  `json:"token_expiry" db:"token_expiry"`
	WatchHistoryID  string     `json:"watch_history_id,omitempty" db:"watch_history_id"`
	WatchExpiration *time.Time `json:"watch_expiration,omitempty" db:"watch_expiration"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenExpired reports whether the access token is invalid at the given instant.
func (c Credential) TokenExpired(now time.Time) bool {
	return !c.TokenExpiry.After(now)
}

// WatchDue reports whether the push subscription needs renewal: either no
// watch was ever registered, or it expires within the lead window.
func (c Credential) WatchDue(now time.Time, lead time.Duration) bool {
	if c.WatchExpiration == nil {
		return true
	}
	return !c.WatchExpiration.After(now.Add(lead))
}

// Message is one row of the append-only message log. Inbound rows arrive via
// the ingestion path and are never written by this core; outbound rows are
// created atomically with a successful send. Only IsRead is ever mutated.
type Message struct {
	ID        string    `json:"id" db:"id"`
	LeadID    *string   `json:"lead_id,omitempty" db:"lead_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Direction Direction `json:"direction" db:"direction"`
	Subject   string    `json:"subject" db:"subject"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"sent_at"`
	IsRead    bool      `json:"is_read" db:"is_read"`
	ThreadID  string    `json:"thread_id,omitempty" db:"thread_id"`
}

// Attachment is a file to include in an outbound message.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"content"`
}

// Thread is a derived grouping of messages sharing a conversation identity.
// Threads are recomputed on every refresh and never persisted.
type Thread struct {
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	LastActivity time.Time `json:"last_activity"`
	HasUnread    bool      `json:"has_unread"`
	Messages     []Message `json:"messages"`
}

// ConversationStatus is the derived per-lead state computed from the lead's
// full message set.
type ConversationStatus string

const (
	StatusNone      ConversationStatus = "none"
	StatusUnread    ConversationStatus = "unread"
	StatusReceived  ConversationStatus = "received"
	StatusDelivered ConversationStatus = "delivered"
)

// SendResult reports the outcome of a successful transmission. Logged is false
// when the provider accepted the message but the local message row could not
// be written; callers must not re-send in that case.
type SendResult struct {
	ProviderID string `json:"provider_id"`
	ThreadID   string `json:"thread_id"`
	LocalID    string `json:"local_id,omitempty"`
	Logged     bool   `json:"logged"`
}

// RenewalStatus classifies one account's outcome within a renewal batch.
type RenewalStatus string

const (
	RenewalRenewed RenewalStatus = "renewed"
	RenewalSkipped RenewalStatus = "skipped"
	RenewalFailed  RenewalStatus = "failed"
)

// AccountResult is the per-account entry in a renewal batch report.
type AccountResult struct {
	UserID string        `json:"user_id"`
	Status RenewalStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// RenewalReport is the aggregate outcome of one watch renewal batch. It is the
// only externally observed output of a scheduled run; alert on Failed > 0.
type RenewalReport struct {
	Renewed int             `json:"renewed"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Results []AccountResult `json:"results"`
}
