// Package domain contains core concepts of the messaging system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"strings"
	"time"
)

type MessageID uint64

// Message represents an immutable chat message inside a thread.
// Within a thread, messages are totally ordered by (CreatedAt, ID).
type Message struct {
	ID        MessageID
	ThreadID  ThreadID
	SenderID  UserID
	Content   string
	CreatedAt time.Time
}

// Before reports whether m sorts strictly before other in thread order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// NormalizeContent trims surrounding whitespace, an empty result is not a valid message.
func NormalizeContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	return trimmed, trimmed != ""
}
