package storage

import (
	"cmp"
	"comms-lab/domain"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IThreadRepository interface {
	Create(title string, creatorID domain.UserID, at time.Time) (domain.Thread, error)
	Get(id domain.ThreadID) (domain.Thread, error)
	List() ([]domain.Thread, error)
	ListByIDs(ids []domain.ThreadID) ([]domain.Thread, error)
}

type ThreadRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *Sequence
}

func NewThreadRepository(db *badger.DB, log *slog.Logger, seq *Sequence) *ThreadRepository {
	return &ThreadRepository{db: db, log: log, seq: seq}
}

// Create persists the thread together with the creator's membership,
// so a thread is never observable without its owner.
func (r *ThreadRepository) Create(title string, creatorID domain.UserID, at time.Time) (domain.Thread, error) {
	id, err := r.seq.Next()
	if err != nil {
		return domain.Thread{}, err
	}
	at = at.UTC()
	thread := domain.Thread{
		ID:        domain.ThreadID(id),
		Title:     title,
		CreatorID: creatorID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	err = update(r.db, func(txn *badger.Txn) error {
		if err := putThread(txn, thread); err != nil {
			return err
		}
		return putMembership(txn, domain.Membership{
			ThreadID:   thread.ID,
			UserID:     creatorID,
			JoinedAt:   at,
			LastReadAt: at,
		})
	})
	if err != nil {
		return domain.Thread{}, err
	}
	r.log.Debug("Thread created", "thread_id", thread.ID, "creator_id", creatorID)
	return thread, nil
}

func (r *ThreadRepository) Get(id domain.ThreadID) (domain.Thread, error) {
	var thread domain.Thread
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		thread, err = getThread(txn, id)
		return err
	})
	return thread, err
}

// List returns every thread, most recently active first.
func (r *ThreadRepository) List() ([]domain.Thread, error) {
	var threads []domain.Thread
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(threadPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				thread, err := decodeThread(val)
				if err != nil {
					return err
				}
				threads = append(threads, thread)
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
	sortByActivity(threads)
	return threads, nil
}

// ListByIDs loads the given threads, most recently active first.
// Ids that no longer resolve are skipped.
func (r *ThreadRepository) ListByIDs(ids []domain.ThreadID) ([]domain.Thread, error) {
	threads := make([]domain.Thread, 0, len(ids))
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(threadKey(id))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				thread, err := decodeThread(val)
				if err != nil {
					return err
				}
				threads = append(threads, thread)
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
	sortByActivity(threads)
	return threads, nil
}

func sortByActivity(threads []domain.Thread) {
	slices.SortStableFunc(threads, func(a, b domain.Thread) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
