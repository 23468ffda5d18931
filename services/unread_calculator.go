package services

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"comms-lab/infrastructure/storage"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

type IUnreadCalculator interface {
	Unread(threadID domain.ThreadID, userID domain.UserID) (int, error)
	TotalUnread(userID domain.UserID) (int, error)
}

// UnreadCalculator derives unread counts from the message log and the read cursors:
// the messages strictly after the member's cursor that the member did not send.
//
// The optional cache is keyed by (thread, user, cursor, last message id). Every append
// changes the thread's last message id and every MarkRead moves the cursor, so stale
// entries are simply never looked up again and age out of the cache.
type UnreadCalculator struct {
	threads     storage.IThreadRepository
	messages    storage.IMessageRepository
	memberships storage.IMembershipRepository
	cache       *ristretto.Cache[string, int]
}

func NewUnreadCalculator(threads storage.IThreadRepository, messages storage.IMessageRepository,
	memberships storage.IMembershipRepository, cacheSize int64) (*UnreadCalculator, error) {
	u := &UnreadCalculator{threads: threads, messages: messages, memberships: memberships}
	if cacheSize <= 0 {
		return u, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, int]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create unread cache: %w", err)
	}
	u.cache = cache
	return u, nil
}

// Unread fails with ErrNotFound for an unknown thread and ErrForbidden for a non-member.
func (u *UnreadCalculator) Unread(threadID domain.ThreadID, userID domain.UserID) (int, error) {
	thread, err := u.threads.Get(threadID)
	if err != nil {
		return 0, err
	}
	membership, err := u.memberships.Get(threadID, userID)
	if err != nil {
		return 0, err
	}
	if u.cache == nil {
		return u.messages.ListSince(threadID, membership.LastReadAt, userID)
	}

	key := cacheKey(thread, membership)
	if count, ok := u.cache.Get(key); ok {
		return count, nil
	}
	count, err := u.messages.ListSince(threadID, membership.LastReadAt, userID)
	if err != nil {
		return 0, err
	}
	// Only cache a count that provably matches the version it is keyed by
	after, err := u.threads.Get(threadID)
	if err == nil && after.LastMessageID == thread.LastMessageID {
		u.cache.Set(key, count, 1)
	}
	return count, nil
}

// TotalUnread sums the unread counts over every thread the user belongs to.
// Threads left or removed while summing are skipped.
func (u *UnreadCalculator) TotalUnread(userID domain.UserID) (int, error) {
	threadIDs, err := u.memberships.ThreadsOf(userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, threadID := range threadIDs {
		count, err := u.Unread(threadID, userID)
		if stderrors.Is(err, errors.ErrForbidden) || stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// Close releases the cache goroutines.
func (u *UnreadCalculator) Close() {
	if u.cache != nil {
		u.cache.Close()
	}
}

func cacheKey(thread domain.Thread, membership domain.Membership) string {
	return fmt.Sprintf("%d:%d:%d:%d", thread.ID, membership.UserID, membership.LastReadAt.UnixNano(), thread.LastMessageID)
}
