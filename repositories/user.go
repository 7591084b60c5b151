//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"meowchat/errors"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (User, error)
	GetUserByUsername(username string) (User, error)
}

// User is the stored account record. The numeric ID comes from a badger
// sequence so identities stay stable and compact across restarts.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 100)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the id sequence lease back to badger.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

func userKey(username string) []byte {
	return []byte("user:" + username)
}

func emailKey(email string) []byte {
	return []byte("email:" + email)
}

// CreateUser persists a new account. The username is the primary key
// and the email is kept unique through a secondary index entry; taking
// either fails with ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(username, email, hashedPassword string) (User, error) {
	id, err := u.seq.Next()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           int64(id) + 1, // sequences hand out ids starting at zero
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(username), data); err != nil {
			return err
		}
		return txn.Set(emailKey(email), []byte(username))
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// GetUserByUsername retrieves a stored account record.
func (u *UserRepository) GetUserByUsername(username string) (User, error) {
	var user User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}
