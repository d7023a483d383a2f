//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(name string) (domain.User, error)
	FindUser(id domain.UserID) (domain.User, error)
	ListUsers(excluding domain.UserID) ([]domain.User, error)
}

// UserRepository is the user directory. Identifiers are assigned from a
// monotonic badger sequence, starting at 1.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("user:seq"), 32)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the id sequence. Pending leased ids are discarded.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// CreateUser assigns the next identifier and persists the user.
func (u *UserRepository) CreateUser(name string) (domain.User, error) {
	next, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user id: %w", err)
	}
	user := domain.User{
		ID:   domain.UserID(next + 1),
		Name: name,
	}

	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), data)
	})
	return user, err
}

// FindUser retrieves a user by id, or errors.ErrUserNotFound.
func (u *UserRepository) FindUser(id domain.UserID) (domain.User, error) {
	var user domain.User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers returns every user except the given id, in id order. Passing 0
// lists everyone, matching the directory's "ignore" default.
func (u *UserRepository) ListUsers(excluding domain.UserID) ([]domain.User, error) {
	var users []domain.User

	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var user domain.User
				if err := json.Unmarshal(val, &user); err != nil {
					return err
				}
				if user.ID != excluding {
					users = append(users, user)
				}
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
	return users, nil
}

func userKey(id domain.UserID) []byte {
	return fmt.Appendf(nil, "user:id:%016d", id)
}
