package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowdesk/mailsync/pkg/models"
)

// MessageStore persists the append-only message log. Inbound rows are written
// by the ingestion path; this core only inserts outbound rows and flips
// is_read.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a message store.
func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Insert appends one message row.
func (s *MessageStore) Insert(ctx context.Context, msg models.Message) error {
	query := `
	INSERT INTO messages (
		id, lead_id, user_id, direction, subject, content, sent_at, is_read, thread_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	)
	`

	var threadID interface{}
	if msg.ThreadID != "" {
		threadID = msg.ThreadID
	}
	var leadID interface{}
	if msg.LeadID != nil {
		leadID = *msg.LeadID
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, leadID, msg.UserID, string(msg.Direction), msg.Subject, msg.Content,
		msg.Timestamp, msg.IsRead, threadID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListByLead returns every message attached to a lead, oldest first.
func (s *MessageStore) ListByLead(ctx context.Context, leadID string) ([]models.Message, error) {
	query := `
	SELECT id, lead_id, user_id, direction, subject, content, sent_at, is_read, thread_id
	FROM messages
	WHERE lead_id = $1
	ORDER BY sent_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for lead: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListAllForUser returns every message owned by a user, including unattached
// ones, oldest first.
func (s *MessageStore) ListAllForUser(ctx context.Context, userID string) ([]models.Message, error) {
	query := `
	SELECT id, lead_id, user_id, direction, subject, content, sent_at, is_read, thread_id
	FROM messages
	WHERE user_id = $1
	ORDER BY sent_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for user: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkRead flips is_read on one message. This is the only permitted mutation
// of a message row.
func (s *MessageStore) MarkRead(ctx context.Context, messageID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("message not found: %s", messageID)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var leadID, threadID sql.NullString
		var direction string
		if err := rows.Scan(
			&msg.ID, &leadID, &msg.UserID, &direction, &msg.Subject, &msg.Content,
			&msg.Timestamp, &msg.IsRead, &threadID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Direction = models.Direction(direction)
		if leadID.Valid {
			v := leadID.String
			msg.LeadID = &v
		}
		if threadID.Valid {
			msg.ThreadID = threadID.String
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
