package threads

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/mailsync/pkg/models"
)

func msg(id, threadID, subject string, dir models.Direction, ts time.Time, read bool) models.Message {
	return models.Message{
		ID:        id,
		UserID:    "user-1",
		Direction: dir,
		Subject:   subject,
		Timestamp: ts,
		IsRead:    read,
		ThreadID:  threadID,
	}
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"plain", "Quote", "quote"},
		{"single reply prefix", "Re: Quote", "quote"},
		{"stacked reply prefixes", "Re: Re: Quote", "quote"},
		{"forward prefix", "Fwd: Quote", "quote"},
		{"short forward prefix", "FW: Quote", "quote"},
		{"mixed prefixes", "Re: Fwd: Quote", "quote"},
		{"surrounding whitespace", "  Quote  ", "quote"},
		{"empty", "", "(no subject)"},
		{"only prefixes", "Re: Fwd:", "(no subject)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSubject(tt.subject))
		})
	}
}

func TestKeyPrefersThreadID(t *testing.T) {
	base := time.Now()

	withThread := msg("m1", "t-123", "Quote", models.DirectionInbound, base, true)
	assert.Equal(t, "t-123", Key(withThread))

	withoutThread := msg("m2", "", "Re: Quote", models.DirectionInbound, base, true)
	assert.Equal(t, "subject:quote", Key(withoutThread))
}

func TestReconstructGroupsByThreadID(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m2", "t-1", "Re: Pricing", models.DirectionOutbound, base.Add(2*time.Hour), true),
		msg("m1", "t-1", "Pricing", models.DirectionInbound, base, true),
		msg("m3", "t-2", "Renewal", models.DirectionInbound, base.Add(time.Hour), false),
	}

	threads := Reconstruct(msgs)
	require.Len(t, threads, 2)

	// Most recent activity first.
	assert.Equal(t, "t-1", threads[0].Key)
	assert.Equal(t, "t-2", threads[1].Key)

	// Label comes from the earliest member's subject.
	assert.Equal(t, "pricing", threads[0].Label)

	// Members in chronological order.
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, "m1", threads[0].Messages[0].ID)
	assert.Equal(t, "m2", threads[0].Messages[1].ID)

	assert.False(t, threads[0].HasUnread)
	assert.True(t, threads[1].HasUnread)
}

func TestReconstructSubjectFallback(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m1", "", "Quote", models.DirectionOutbound, base, true),
		msg("m2", "", "Re: Quote", models.DirectionInbound, base.Add(time.Hour), true),
		msg("m3", "", "Re: Re: Quote", models.DirectionOutbound, base.Add(2*time.Hour), true),
	}

	threads := Reconstruct(msgs)
	require.Len(t, threads, 1)
	assert.Equal(t, "subject:quote", threads[0].Key)
	assert.Len(t, threads[0].Messages, 3)
}

func TestReconstructPartitionsEveryMessage(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m1", "t-1", "A", models.DirectionInbound, base, true),
		msg("m2", "", "B", models.DirectionOutbound, base.Add(time.Minute), true),
		msg("m3", "", "", models.DirectionInbound, base.Add(2*time.Minute), false),
		msg("m4", "t-1", "Re: A", models.DirectionOutbound, base.Add(3*time.Minute), true),
	}

	threads := Reconstruct(msgs)

	seen := map[string]int{}
	total := 0
	for _, th := range threads {
		for _, m := range th.Messages {
			seen[m.ID]++
			total++
		}
	}
	assert.Equal(t, len(msgs), total)
	for _, m := range msgs {
		assert.Equal(t, 1, seen[m.ID], "message %s must land in exactly one thread", m.ID)
	}
}

func TestReconstructDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m2", "t-1", "B", models.DirectionInbound, base.Add(time.Hour), false),
		msg("m1", "t-1", "A", models.DirectionInbound, base, true),
	}
	original := make([]models.Message, len(msgs))
	copy(original, msgs)

	first := Reconstruct(msgs)
	second := Reconstruct(msgs)

	if diff := cmp.Diff(original, msgs); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated reconstruction diverged (-first +second):\n%s", diff)
	}
}

func TestReconstructOrderIndependent(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("m1", "t-1", "A", models.DirectionInbound, base, true),
		msg("m2", "t-1", "Re: A", models.DirectionOutbound, base.Add(time.Hour), true),
		msg("m3", "", "B", models.DirectionInbound, base.Add(2*time.Hour), false),
	}
	reversed := []models.Message{msgs[2], msgs[1], msgs[0]}

	if diff := cmp.Diff(Reconstruct(msgs), Reconstruct(reversed)); diff != "" {
		t.Errorf("reconstruction depends on input order (-forward +reversed):\n%s", diff)
	}
}

func TestStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		msgs []models.Message
		want models.ConversationStatus
	}{
		{
			name: "no messages",
			msgs: nil,
			want: models.StatusNone,
		},
		{
			name: "unread inbound wins over everything",
			msgs: []models.Message{
				msg("m1", "", "A", models.DirectionInbound, base, false),
				msg("m2", "", "A", models.DirectionOutbound, base.Add(time.Hour), true),
			},
			want: models.StatusUnread,
		},
		{
			name: "outbound last",
			msgs: []models.Message{
				msg("m1", "", "A", models.DirectionInbound, base, true),
				msg("m2", "", "A", models.DirectionOutbound, base.Add(time.Hour), true),
			},
			want: models.StatusDelivered,
		},
		{
			name: "single read inbound",
			msgs: []models.Message{
				msg("m1", "", "A", models.DirectionInbound, base, true),
			},
			want: models.StatusReceived,
		},
		{
			name: "read inbound after reply",
			msgs: []models.Message{
				msg("m1", "", "A", models.DirectionOutbound, base, true),
				msg("m2", "", "Re: A", models.DirectionInbound, base.Add(time.Hour), true),
			},
			want: models.StatusReceived,
		},
		{
			name: "only outbound",
			msgs: []models.Message{
				msg("m1", "", "A", models.DirectionOutbound, base, true),
			},
			want: models.StatusDelivered,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.msgs))
		})
	}
}
