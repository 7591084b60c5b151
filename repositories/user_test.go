package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"meowchat/errors"
)

func newTestUserRepository(t *testing.T) *UserRepository {
	t.Helper()
	repository, err := NewUserRepository(openTestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := newTestUserRepository(t)

	created, err := repository.CreateUser("alice", "alice@example.com", "$argon2id$hash")
	req.NoError(err)
	req.Positive(created.ID)
	req.Equal("alice", created.Username)

	fetched, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(created, fetched)
}

func Test_Create_User_Assigns_Distinct_IDs(t *testing.T) {
	req := require.New(t)
	repository := newTestUserRepository(t)

	alice, err := repository.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := repository.CreateUser("bob", "bob@example.com", "hash")
	req.NoError(err)

	req.NotEqual(alice.ID, bob.ID)
	req.Greater(bob.ID, alice.ID)
}

func Test_Create_User_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := newTestUserRepository(t)

	_, err := repository.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "other@example.com", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Create_User_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := newTestUserRepository(t)

	_, err := repository.CreateUser("alice", "alice@example.com", "hash")
	req.NoError(err)

	_, err = repository.CreateUser("alice2", "alice@example.com", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := newTestUserRepository(t)

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, badger.ErrKeyNotFound)
}
