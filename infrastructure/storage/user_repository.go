//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"comms-lab/domain"
	"comms-lab/errors"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(username, displayName, passwordHash string, roles []string) (domain.User, error)
	Get(id domain.UserID) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
	List() ([]domain.User, error)
}

// UserRepository is the minimal user directory: users are stored under
// "user:{id}" with a "username:{name}" lookup key holding the id.
type UserRepository struct {
	db  *badger.DB
	seq *Sequence
}

func NewUserRepository(db *badger.DB, seq *Sequence) *UserRepository {
	return &UserRepository{db: db, seq: seq}
}

// CreateUser persists a new user and returns it with its generated id.
// Usernames are unique, case-insensitively.
func (r *UserRepository) CreateUser(username, displayName, passwordHash string, roles []string) (domain.User, error) {
	id, err := r.seq.Next()
	if err != nil {
		return domain.User{}, err
	}
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}
	user := domain.User{
		ID:           domain.UserID(id),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	err = update(r.db, func(txn *badger.Txn) error {
		key := usernameKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, []byte(strconv.FormatUint(id, 10))); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), encodeUser(user))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Get(id domain.UserID) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (r *UserRepository) GetByUsername(username string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: user %q", errors.ErrNotFound, username)
		}
		if err != nil {
			return err
		}
		var id uint64
		err = item.Value(func(val []byte) error {
			id, err = strconv.ParseUint(string(val), 10, 64)
			return err
		})
		if err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, err
}

// List returns every user ordered by username.
func (r *UserRepository) List() ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
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
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return users, nil
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %d", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}
