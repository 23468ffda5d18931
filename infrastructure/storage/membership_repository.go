package storage

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMembershipRepository interface {
	Join(threadID domain.ThreadID, userID domain.UserID, at time.Time) (domain.Membership, bool, error)
	Leave(threadID domain.ThreadID, userID domain.UserID) (bool, error)
	MarkRead(threadID domain.ThreadID, userID domain.UserID, at time.Time) (bool, error)
	IsMember(threadID domain.ThreadID, userID domain.UserID) (bool, error)
	Get(threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error)
	Members(threadID domain.ThreadID) ([]domain.Membership, error)
	ThreadsOf(userID domain.UserID) ([]domain.ThreadID, error)
}

// MembershipRepository owns the (thread, user) read cursors.
// Each row is mirrored by a "member-of" index entry so the threads of a user
// can be listed without scanning every thread.
type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMembershipRepository(db *badger.DB, log *slog.Logger) *MembershipRepository {
	return &MembershipRepository{db: db, log: log}
}

// Join creates the membership with both cursors at the given instant, so the
// history written before joining never counts as unread. An existing row is
// returned untouched with created=false.
func (r *MembershipRepository) Join(threadID domain.ThreadID, userID domain.UserID, at time.Time) (domain.Membership, bool, error) {
	var membership domain.Membership
	var created bool
	err := update(r.db, func(txn *badger.Txn) error {
		if _, err := getThread(txn, threadID); err != nil {
			return err
		}
		existing, found, err := getMembership(txn, threadID, userID)
		if err != nil {
			return err
		}
		if found {
			membership, created = existing, false
			return nil
		}
		joinedAt := at.UTC()
		membership = domain.Membership{ThreadID: threadID, UserID: userID, JoinedAt: joinedAt, LastReadAt: joinedAt}
		created = true
		return putMembership(txn, membership)
	})
	if err != nil {
		return domain.Membership{}, false, err
	}
	if created {
		r.log.Debug("Membership created", "thread_id", threadID, "user_id", userID)
	}
	return membership, created, nil
}

// Leave removes the membership and reports whether a row existed.
// The creator of a thread can never leave it.
func (r *MembershipRepository) Leave(threadID domain.ThreadID, userID domain.UserID) (bool, error) {
	var removed bool
	err := update(r.db, func(txn *badger.Txn) error {
		thread, err := getThread(txn, threadID)
		if err != nil {
			return err
		}
		if thread.IsCreator(userID) {
			return fmt.Errorf("%w: the creator cannot be removed from thread %d", errors.ErrForbidden, threadID)
		}
		_, found, err := getMembership(txn, threadID, userID)
		if err != nil || !found {
			removed = false
			return err
		}
		removed = true
		return deleteMembership(txn, threadID, userID)
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.log.Debug("Membership removed", "thread_id", threadID, "user_id", userID)
	}
	return removed, nil
}

// MarkRead moves the read cursor to max(lastReadAt, at) and reports whether it moved.
func (r *MembershipRepository) MarkRead(threadID domain.ThreadID, userID domain.UserID, at time.Time) (bool, error) {
	var moved bool
	err := update(r.db, func(txn *badger.Txn) error {
		if _, err := getThread(txn, threadID); err != nil {
			return err
		}
		membership, found, err := getMembership(txn, threadID, userID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: not a member of thread %d", errors.ErrForbidden, threadID)
		}
		moved = membership.Advance(at.UTC())
		if !moved {
			return nil
		}
		return putMembership(txn, membership)
	})
	return moved, err
}

func (r *MembershipRepository) IsMember(threadID domain.ThreadID, userID domain.UserID) (bool, error) {
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		_, found, err = getMembership(txn, threadID, userID)
		return err
	})
	return found, err
}

// Get returns the membership row, ErrForbidden when the user is not a member.
func (r *MembershipRepository) Get(threadID domain.ThreadID, userID domain.UserID) (domain.Membership, error) {
	var membership domain.Membership
	err := r.db.View(func(txn *badger.Txn) error {
		m, found, err := getMembership(txn, threadID, userID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: not a member of thread %d", errors.ErrForbidden, threadID)
		}
		membership = m
		return nil
	})
	return membership, err
}

// Members lists the memberships of a thread ordered by user id.
func (r *MembershipRepository) Members(threadID domain.ThreadID) ([]domain.Membership, error) {
	var members []domain.Membership
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := threadMembersPrefix(threadID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				membership, err := decodeMembership(val)
				if err != nil {
					return err
				}
				members = append(members, membership)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return members, err
}

// ThreadsOf lists the threads a user currently belongs to, from the key-only index.
func (r *MembershipRepository) ThreadsOf(userID domain.UserID) ([]domain.ThreadID, error) {
	var threads []domain.ThreadID
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userThreadsPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			threadID, err := threadIDFromMemberOfKey(it.Item().Key())
			if err != nil {
				return err
			}
			threads = append(threads, threadID)
		}
		return nil
	})
	return threads, err
}
