package storage

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultLimitMessages is the history page size when none is configured.
const DefaultLimitMessages = 100

type IMessageRepository interface {
	Append(threadID domain.ThreadID, senderID domain.UserID, content string) (domain.Message, error)
	ListSince(threadID domain.ThreadID, cursor time.Time, excludeUserID domain.UserID) (int, error)
	Recent(threadID domain.ThreadID, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *Sequence
	limitMessages int
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, seq *Sequence, limitMessages int) *MessageRepository {
	if limitMessages <= 0 {
		limitMessages = DefaultLimitMessages
	}
	return &MessageRepository{
		db:            db,
		log:           log,
		seq:           seq,
		limitMessages: limitMessages,
		now:           time.Now,
	}
}

// WithClock replaces the source of message timestamps.
func (r *MessageRepository) WithClock(now func() time.Time) *MessageRepository {
	r.now = now
	return r
}

// Append persists a message and, in the same transaction, touches the thread
// activity and moves the sender's read cursor up to the message.
// The key "msg:{thread}:{createdAt}:{id}" keeps messages in (createdAt, id) order,
// the id breaks ties between messages created in the same nanosecond.
func (r *MessageRepository) Append(threadID domain.ThreadID, senderID domain.UserID, content string) (domain.Message, error) {
	content, ok := domain.NormalizeContent(content)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: message content is empty", errors.ErrValidation)
	}

	var message domain.Message
	err := update(r.db, func(txn *badger.Txn) error {
		thread, err := getThread(txn, threadID)
		if err != nil {
			return err
		}
		// A conflicting run is replayed as a brand new insert
		id, err := r.seq.Next()
		if err != nil {
			return err
		}
		message = domain.Message{
			ID:        domain.MessageID(id),
			ThreadID:  threadID,
			SenderID:  senderID,
			Content:   content,
			CreatedAt: r.now().UTC(),
		}
		if err = txn.Set(messageKey(message), encodeMessage(message)); err != nil {
			return err
		}

		if message.CreatedAt.After(thread.UpdatedAt) {
			thread.UpdatedAt = message.CreatedAt
		}
		thread.LastMessageID = message.ID
		if err = putThread(txn, thread); err != nil {
			return err
		}

		membership, found, err := getMembership(txn, threadID, senderID)
		if err != nil || !found {
			return err
		}
		if membership.Advance(message.CreatedAt) {
			return putMembership(txn, membership)
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	r.log.Debug("Message appended", "thread_id", threadID, "message_id", message.ID, "sender_id", senderID)
	return message, nil
}

// ListSince counts messages created strictly after cursor whose sender is not excludeUserID.
func (r *MessageRepository) ListSince(threadID domain.ThreadID, cursor time.Time, excludeUserID domain.UserID) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := threadMessagesPrefix(threadID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(messagesAfterKey(threadID, cursor)); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				if message.SenderID != excludeUserID {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return count, err
}

// Recent returns up to limit latest messages of the thread in ascending order.
// A non-positive limit falls back to the configured one.
func (r *MessageRepository) Recent(threadID domain.ThreadID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = r.limitMessages
	}
	messages := make([]domain.Message, 0, min(limit, 128))
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := threadMessagesPrefix(threadID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = min(limit, opts.PrefetchSize)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(threadMessagesEnd(threadID)); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
