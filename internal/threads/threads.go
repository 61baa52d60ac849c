// Package threads reconstructs conversation threads and per-lead status from
// a flat message set. Everything here is pure: same input, same output,
// regardless of message order or how often it runs.
package threads

import (
	"sort"
	"strings"

	"github.com/flowdesk/mailsync/pkg/models"
)

// emptySubjectLabel stands in for messages with no usable subject.
const emptySubjectLabel = "(no subject)"

// subjectKeyPrefix namespaces fallback keys so a provider thread id can never
// collide with a derived subject key.
const subjectKeyPrefix = "subject:"

// NormalizeSubject lowercases the subject, strips leading Re:/Fwd: prefixes
// and surrounding whitespace. Repeated prefixes are stripped in a loop, so
// "Re: Re: Quote" and "Quote" normalize identically. An empty result becomes
// the placeholder label.
func NormalizeSubject(subject string) string {
	s := strings.ToLower(strings.TrimSpace(subject))
	for {
		stripped := s
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			if strings.HasPrefix(stripped, prefix) {
				stripped = strings.TrimSpace(stripped[len(prefix):])
			}
		}
		if stripped == s {
			break
		}
		s = stripped
	}
	if s == "" {
		return emptySubjectLabel
	}
	return s
}

// Key derives the stable thread key for a message: the provider thread id
// when present, else a normalized-subject fallback.
func Key(m models.Message) string {
	if m.ThreadID != "" {
		return m.ThreadID
	}
	return subjectKeyPrefix + NormalizeSubject(m.Subject)
}

// Reconstruct partitions messages into threads. Every message lands in
// exactly one thread. Threads are labelled by the normalized subject of their
// chronologically earliest member and ordered descending by last activity.
func Reconstruct(messages []models.Message) []models.Thread {
	groups := make(map[string][]models.Message)
	for _, m := range messages {
		k := Key(m)
		groups[k] = append(groups[k], m)
	}

	threads := make([]models.Thread, 0, len(groups))
	for key, members := range groups {
		sorted := make([]models.Message, len(members))
		copy(sorted, members)
		sort.SliceStable(sorted, func(i, j int) bool {
			if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
				return sorted[i].Timestamp.Before(sorted[j].Timestamp)
			}
			return sorted[i].ID < sorted[j].ID
		})

		thread := models.Thread{
			Key:          key,
			Label:        NormalizeSubject(sorted[0].Subject),
			LastActivity: sorted[len(sorted)-1].Timestamp,
			Messages:     sorted,
		}
		for _, m := range sorted {
			if m.Direction == models.DirectionInbound && !m.IsRead {
				thread.HasUnread = true
				break
			}
		}
		threads = append(threads, thread)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if !threads[i].LastActivity.Equal(threads[j].LastActivity) {
			return threads[i].LastActivity.After(threads[j].LastActivity)
		}
		return threads[i].Key < threads[j].Key
	})

	return threads
}

// Status computes the conversation status for a lead from its full message
// set. The received→delivered decision uses a single watermark: the most
// recent inbound message's timestamp against any later outbound send.
func Status(messages []models.Message) models.ConversationStatus {
	if len(messages) == 0 {
		return models.StatusNone
	}

	for _, m := range messages {
		if m.Direction == models.DirectionInbound && !m.IsRead {
			return models.StatusUnread
		}
	}

	sorted := make([]models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	last := sorted[len(sorted)-1]
	if last.Direction == models.DirectionOutbound {
		return models.StatusDelivered
	}

	// Last message is inbound and read. If an outbound send postdates the
	// most recent inbound message it was answered; the tie goes to received.
	lastInbound := last.Timestamp
	for _, m := range sorted {
		if m.Direction == models.DirectionOutbound && m.Timestamp.After(lastInbound) {
			return models.StatusDelivered
		}
	}
	return models.StatusReceived
}
