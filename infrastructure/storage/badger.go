package storage

import (
	"comms-lab/domain"
	"comms-lab/errors"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictAttempts bounds the re-runs of a transaction aborted by badger's
// optimistic concurrency control.
const maxConflictAttempts = 64

// update runs fn in a read-write transaction and re-runs it on ErrConflict.
// fn must be safe to execute more than once.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictAttempts {
		if err = db.Update(fn); !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts: %w", maxConflictAttempts, err)
}

// Sequence hands out identifiers starting at 1 from a persisted badger sequence.
type Sequence struct {
	seq *badger.Sequence
}

func NewSequence(db *badger.DB, key string, bandwidth uint64) (*Sequence, error) {
	seq, err := db.GetSequence([]byte(key), bandwidth)
	if err != nil {
		return nil, fmt.Errorf("unable to lease sequence %s: %w", key, err)
	}
	return &Sequence{seq: seq}, nil
}

func (s *Sequence) Next() (uint64, error) {
	v, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	// badger sequences start at 0, which is reserved for "no id"
	return v + 1, nil
}

// Release returns the unused part of the lease so it is not lost on restart.
func (s *Sequence) Release() error {
	return s.seq.Release()
}

func getThread(txn *badger.Txn, id domain.ThreadID) (domain.Thread, error) {
	item, err := txn.Get(threadKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Thread{}, fmt.Errorf("%w: thread %d", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Thread{}, err
	}
	var thread domain.Thread
	err = item.Value(func(val []byte) error {
		thread, err = decodeThread(val)
		return err
	})
	return thread, err
}

func putThread(txn *badger.Txn, thread domain.Thread) error {
	return txn.Set(threadKey(thread.ID), encodeThread(thread))
}

// getMembership returns found=false without error when the row does not exist.
func getMembership(txn *badger.Txn, threadID domain.ThreadID, userID domain.UserID) (domain.Membership, bool, error) {
	item, err := txn.Get(memberKey(threadID, userID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Membership{}, false, nil
	}
	if err != nil {
		return domain.Membership{}, false, err
	}
	var membership domain.Membership
	err = item.Value(func(val []byte) error {
		membership, err = decodeMembership(val)
		return err
	})
	return membership, err == nil, err
}

func putMembership(txn *badger.Txn, m domain.Membership) error {
	if err := txn.Set(memberKey(m.ThreadID, m.UserID), encodeMembership(m)); err != nil {
		return err
	}
	return txn.Set(memberOfKey(m.UserID, m.ThreadID), nil)
}

func deleteMembership(txn *badger.Txn, threadID domain.ThreadID, userID domain.UserID) error {
	if err := txn.Delete(memberKey(threadID, userID)); err != nil {
		return err
	}
	return txn.Delete(memberOfKey(userID, threadID))
}
