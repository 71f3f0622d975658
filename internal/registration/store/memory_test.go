package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stagepass/internal/registration/models"
	id "stagepass/pkg/domain"
	"stagepass/pkg/platform/sentinel"
)

type RegistrationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *RegistrationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestRegistrationStoreSuite(t *testing.T) {
	suite.Run(t, new(RegistrationStoreSuite))
}

func (s *RegistrationStoreSuite) newRegistration(userID id.UserID, eventID id.EventID) *models.Registration {
	reg, err := models.NewRegistration(
		id.NewRegistrationID(), eventID, userID, id.NewTicketTypeID(),
		"General", 2, 4, s.now,
	)
	s.Require().NoError(err)
	return reg
}

// TestCreationAndLookups verifies the store creates and retrieves entries.
func (s *RegistrationStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds by ID", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		found, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(reg.UserID, found.UserID)
		s.Equal(models.StatusRegistered, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewRegistrationID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copies do not alias stored state", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		found, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		found.Status = models.StatusUsed

		again, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRegistered, again.Status)
	})
}

// TestOneActivePerEvent verifies the single-active-entry rule.
func (s *RegistrationStoreSuite) TestOneActivePerEvent() {
	userID := id.NewUserID()
	eventID := id.NewEventID()

	s.Run("rejects a second active entry", func() {
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, s.newRegistration(userID, eventID)))

		err := s.store.CreateIfNoActive(s.ctx, s.newRegistration(userID, eventID))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows an entry for a different event", func() {
		err := s.store.CreateIfNoActive(s.ctx, s.newRegistration(userID, id.NewEventID()))
		s.NoError(err)
	})

	s.Run("allows a new entry once the old one is terminal", func() {
		s.store.Clear()
		first := s.newRegistration(userID, eventID)
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, first))

		_, err := s.store.Execute(s.ctx, first.ID,
			func(r *models.Registration) error { return r.CanCancel(s.now) },
			func(r *models.Registration) { r.ApplyCancellation(s.now) },
		)
		s.Require().NoError(err)

		err = s.store.CreateIfNoActive(s.ctx, s.newRegistration(userID, eventID))
		s.NoError(err)
	})
}

// TestExecute verifies the validate/mutate callback contract.
func (s *RegistrationStoreSuite) TestExecute() {
	s.Run("applies mutation and bumps version", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		deadline := s.now.Add(72 * time.Hour)
		updated, err := s.store.Execute(s.ctx, reg.ID,
			func(r *models.Registration) error { return r.CanMarkWon() },
			func(r *models.Registration) { r.ApplyWin(deadline) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusWon, updated.Status)
		s.Equal(reg.Version+1, updated.Version)
	})

	s.Run("validation failure leaves the entry untouched", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		_, err := s.store.Execute(s.ctx, reg.ID,
			func(r *models.Registration) error { return r.CanMarkUsed() },
			func(r *models.Registration) { r.ApplyUse(s.now) },
		)
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRegistered, found.Status)
		s.Equal(reg.Version, found.Version)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Execute(s.ctx, id.NewRegistrationID(),
			func(*models.Registration) error { return nil },
			func(*models.Registration) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestUpdate verifies the optimistic version guard.
func (s *RegistrationStoreSuite) TestUpdate() {
	s.Run("rejects stale versions", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		stale := reg.Clone()
		reg.Status = models.StatusLost
		s.Require().NoError(s.store.Update(s.ctx, reg))

		stale.Status = models.StatusWon
		err := s.store.Update(s.ctx, stale)
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusLost, found.Status)
	})
}

// TestListings verifies the query methods.
func (s *RegistrationStoreSuite) TestListings() {
	s.Run("lists a user's entries most recent first", func() {
		userID := id.NewUserID()
		older := s.newRegistration(userID, id.NewEventID())
		older.RegisteredAt = s.now.Add(-time.Hour)
		newer := s.newRegistration(userID, id.NewEventID())

		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, older))
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, newer))

		regs, err := s.store.ListByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().Len(regs, 2)
		s.Equal(newer.ID, regs[0].ID)
		s.Equal(older.ID, regs[1].ID)
	})

	s.Run("lists an event's entries by status oldest first", func() {
		eventID := id.NewEventID()
		first := s.newRegistration(id.NewUserID(), eventID)
		first.RegisteredAt = s.now.Add(-time.Hour)
		second := s.newRegistration(id.NewUserID(), eventID)

		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, first))
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, second))

		regs, err := s.store.ListByEventAndStatus(s.ctx, eventID, models.StatusRegistered)
		s.Require().NoError(err)
		s.Require().Len(regs, 2)
		s.Equal(first.ID, regs[0].ID)
	})

	s.Run("finds won entries past their payment deadline", func() {
		reg := s.newRegistration(id.NewUserID(), id.NewEventID())
		s.Require().NoError(s.store.CreateIfNoActive(s.ctx, reg))

		expired := s.now.Add(-time.Minute)
		_, err := s.store.Execute(s.ctx, reg.ID,
			func(r *models.Registration) error { return r.CanMarkWon() },
			func(r *models.Registration) { r.ApplyWin(expired) },
		)
		s.Require().NoError(err)

		regs, err := s.store.ListExpiredWon(s.ctx, s.now, 10)
		s.Require().NoError(err)
		s.Require().Len(regs, 1)
		s.Equal(reg.ID, regs[0].ID)

		regs, err = s.store.ListExpiredWon(s.ctx, s.now.Add(-time.Hour), 10)
		s.Require().NoError(err)
		s.Empty(regs)
	})
}
