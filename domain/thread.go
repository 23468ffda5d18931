// Package domain contains core concepts of the messaging system.
// This file defines Threads, the conversations members belong to.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"strconv"
	"time"
)

type ThreadID uint64

func (id ThreadID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Thread is a conversation scoped to a set of members.
// CreatorID is immutable and the creator can never leave the thread.
type Thread struct {
	ID        ThreadID
	Title     string
	CreatorID UserID
	CreatedAt time.Time
	// UpdatedAt is touched on every new message, threads are listed by it.
	UpdatedAt time.Time
	// LastMessageID changes on every append to the thread.
	LastMessageID MessageID
}

// DisplayTitle falls back to a generated title when none was given.
func (t Thread) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return "Thread #" + t.ID.String()
}

// IsCreator reports whether userID owns the thread.
func (t Thread) IsCreator(userID UserID) bool {
	return t.CreatorID == userID
}
