package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stagepass/internal/auth/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

type UserStoreSuite struct {
	suite.Suite
	store *InMemory
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) newUser(email string) *models.User {
	user, err := models.NewUser(
		id.NewUserID(), "Test Fan", email, "A123456789",
		[]byte("$2a$10$fakehashfakehashfakehash"), time.Now().UTC(),
	)
	s.Require().NoError(err)
	return user
}

// TestLookupBehavior tests user retrieval by ID and email.
func (s *UserStoreSuite) TestLookupBehavior() {
	s.Run("returns user by ID when exists", func() {
		user := s.newUser("jane.doe@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(context.Background(), user))

		found, err := s.store.FindByID(context.Background(), user.ID)
		s.Require().NoError(err)
		s.Equal(user.Email, found.Email)
	})

	s.Run("returns user by email case-insensitively", func() {
		user := s.newUser("email.lookup@example.com")
		s.Require().NoError(s.store.CreateIfEmailAvailable(context.Background(), user))

		found, err := s.store.FindByEmail(context.Background(), "EMAIL.LOOKUP@example.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns ErrNotFound when user ID does not exist", func() {
		_, err := s.store.FindByID(context.Background(), id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns ErrNotFound when email does not exist", func() {
		_, err := s.store.FindByEmail(context.Background(), "missing@example.com")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestEmailUniqueness tests case-insensitive email uniqueness.
func (s *UserStoreSuite) TestEmailUniqueness() {
	s.Run("rejects duplicate email", func() {
		s.Require().NoError(s.store.CreateIfEmailAvailable(context.Background(), s.newUser("dup@example.com")))

		err := s.store.CreateIfEmailAvailable(context.Background(), s.newUser("DUP@example.com"))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}
