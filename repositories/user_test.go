package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Find(t *testing.T) {
	req := require.New(t)
	repository, err := NewUserRepository(openTestDB(t))
	req.NoError(err)
	defer repository.Close()

	// When users are created
	alice, err := repository.CreateUser("alice")
	req.NoError(err)
	bob, err := repository.CreateUser("bob")
	req.NoError(err)

	// Then ids are assigned monotonically starting at 1
	req.Equal(domain.UserID(1), alice.ID)
	req.Equal(domain.UserID(2), bob.ID)

	// And lookups round trip
	found, err := repository.FindUser(alice.ID)
	req.NoError(err)
	req.Equal(alice, found)
}

func TestUserRepository_Find_Missing_User(t *testing.T) {
	req := require.New(t)
	repository, err := NewUserRepository(openTestDB(t))
	req.NoError(err)
	defer repository.Close()

	_, err = repository.FindUser(domain.UserID(999))
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_List_Excluding(t *testing.T) {
	req := require.New(t)
	repository, err := NewUserRepository(openTestDB(t))
	req.NoError(err)
	defer repository.Close()

	alice, err := repository.CreateUser("alice")
	req.NoError(err)
	bob, err := repository.CreateUser("bob")
	req.NoError(err)
	clara, err := repository.CreateUser("clara")
	req.NoError(err)

	// When listing with an exclusion
	users, err := repository.ListUsers(bob.ID)
	req.NoError(err)
	req.Equal([]domain.User{alice, clara}, users)

	// And zero excludes nobody, matching the directory default
	everyone, err := repository.ListUsers(0)
	req.NoError(err)
	req.Equal([]domain.User{alice, bob, clara}, everyone)
}
