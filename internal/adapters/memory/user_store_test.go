package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

type UserStoreSuite struct {
	suite.Suite
	store *UserStore
	ctx   context.Context
}

func TestUserStoreSuite(t *testing.T) {
	suite.Run(t, new(UserStoreSuite))
}

func (s *UserStoreSuite) SetupTest() {
	s.store = NewUserStore()
	s.ctx = context.Background()
}

func (s *UserStoreSuite) create(username, phone string) domain.User {
	user, err := s.store.Create(s.ctx, ports.CreateUserParams{
		ID:              uuid.New(),
		Username:        username,
		Name:            "Test " + username,
		Phone:           phone,
		PhoneVisibility: domain.VisibilityAll,
		BirthVisibility: domain.VisibilityAll,
		CreatedAt:       time.Now().UTC(),
	})
	s.Require().NoError(err)
	return user
}

func (s *UserStoreSuite) TestCreationAndLookups() {
	user := s.create("alice", "+79261234567")

	s.Run("finds user by every key", func() {
		byID, err := s.store.GetByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal("alice", byID.Username)

		byUsername, err := s.store.GetByUsername(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(user.ID, byUsername.ID)

		byPhone, err := s.store.GetByPhone(s.ctx, "+79261234567")
		s.Require().NoError(err)
		s.Equal(user.ID, byPhone.ID)
	})

	s.Run("returns ErrNotFound for unknown keys", func() {
		_, err := s.store.GetByID(s.ctx, uuid.New())
		s.ErrorIs(err, domain.ErrNotFound)
		_, err = s.store.GetByPhone(s.ctx, "+79000000000")
		s.ErrorIs(err, domain.ErrNotFound)
	})

	s.Run("rejects duplicate username and phone", func() {
		_, err := s.store.Create(s.ctx, ports.CreateUserParams{ID: uuid.New(), Username: "alice", Phone: "+79000000001"})
		s.ErrorIs(err, domain.ErrAlreadyExists)
		_, err = s.store.Create(s.ctx, ports.CreateUserParams{ID: uuid.New(), Username: "alice2", Phone: "+79261234567"})
		s.ErrorIs(err, domain.ErrAlreadyExists)
	})
}

func (s *UserStoreSuite) TestConcurrentCreateSameUsername() {
	const goroutines = 50
	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Create(s.ctx, ports.CreateUserParams{
				ID:       uuid.New(),
				Username: "racer",
				Phone:    fmt.Sprintf("+79%09d", i),
			})
			if err == nil {
				created.Add(1)
			} else if errors.Is(err, domain.ErrAlreadyExists) {
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *UserStoreSuite) TestUpdate() {
	user := s.create("bob", "+79261234568")
	s.create("carol", "+79261234569")

	s.Run("renames and reindexes", func() {
		updated, err := s.store.Update(s.ctx, user.ID, domain.UserMutation{Field: domain.FieldUsername, Text: "bobby", At: time.Now()})
		s.Require().NoError(err)
		s.Equal("bobby", updated.Username)

		_, err = s.store.GetByUsername(s.ctx, "bob")
		s.ErrorIs(err, domain.ErrNotFound)
		found, err := s.store.GetByUsername(s.ctx, "bobby")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("rejects rename onto a taken username", func() {
		_, err := s.store.Update(s.ctx, user.ID, domain.UserMutation{Field: domain.FieldUsername, Text: "carol"})
		s.ErrorIs(err, domain.ErrAlreadyExists)
	})

	s.Run("keeps creation time", func() {
		updated, err := s.store.Update(s.ctx, user.ID, domain.UserMutation{Field: domain.FieldBirthVisibility, Visibility: domain.VisibilitySome, At: time.Now().Add(time.Hour)})
		s.Require().NoError(err)
		s.Equal(domain.VisibilitySome, updated.BirthVisibility)
		s.Equal(user.CreatedAt, updated.CreatedAt)
	})

	s.Run("returns ErrNotFound for unknown user", func() {
		_, err := s.store.Update(s.ctx, uuid.New(), domain.UserMutation{Field: domain.FieldName, Text: "x"})
		s.ErrorIs(err, domain.ErrNotFound)
	})
}

func (s *UserStoreSuite) TestAllowListSetSemantics() {
	owner := s.create("dave", "+79261234570")
	viewer := uuid.New()

	s.Require().NoError(s.store.GrantViewer(s.ctx, owner.ID, domain.FieldKindPhone, viewer, time.Now()))
	s.Require().NoError(s.store.GrantViewer(s.ctx, owner.ID, domain.FieldKindPhone, viewer, time.Now()))

	phoneList, err := s.store.GetAllowList(s.ctx, owner.ID, domain.FieldKindPhone)
	s.Require().NoError(err)
	s.Len(phoneList, 1)

	birthList, err := s.store.GetAllowList(s.ctx, owner.ID, domain.FieldKindDateOfBirth)
	s.Require().NoError(err)
	s.Empty(birthList, "lists are independent per field")

	s.Require().NoError(s.store.RevokeViewer(s.ctx, owner.ID, domain.FieldKindPhone, viewer))
	s.Require().NoError(s.store.RevokeViewer(s.ctx, owner.ID, domain.FieldKindPhone, viewer), "revoking an absent viewer is a no-op")

	phoneList, err = s.store.GetAllowList(s.ctx, owner.ID, domain.FieldKindPhone)
	s.Require().NoError(err)
	s.Empty(phoneList)

	s.ErrorIs(s.store.GrantViewer(s.ctx, uuid.New(), domain.FieldKindPhone, viewer, time.Now()), domain.ErrNotFound)
}

func (s *UserStoreSuite) TestConcurrentGrantsAreAllKept() {
	owner := s.create("erin", "+79261234571")
	const goroutines = 40
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.GrantViewer(s.ctx, owner.ID, domain.FieldKindDateOfBirth, uuid.New(), time.Now()))
		}()
	}
	wg.Wait()

	list, err := s.store.GetAllowList(s.ctx, owner.ID, domain.FieldKindDateOfBirth)
	s.Require().NoError(err)
	s.Len(list, goroutines)
}

func (s *UserStoreSuite) TestDeleteCascades() {
	owner := s.create("frank", "+79261234572")
	other := s.create("grace", "+79261234573")
	s.Require().NoError(s.store.GrantViewer(s.ctx, owner.ID, domain.FieldKindPhone, other.ID, time.Now()))
	s.Require().NoError(s.store.GrantViewer(s.ctx, other.ID, domain.FieldKindPhone, owner.ID, time.Now()))

	s.Require().NoError(s.store.Delete(s.ctx, owner.ID))
	s.ErrorIs(s.store.Delete(s.ctx, owner.ID), domain.ErrNotFound)

	_, err := s.store.GetByPhone(s.ctx, "+79261234572")
	s.ErrorIs(err, domain.ErrNotFound)

	list, err := s.store.GetAllowList(s.ctx, other.ID, domain.FieldKindPhone)
	s.Require().NoError(err)
	s.False(list.Contains(owner.ID), "deleted user is removed from other allow-lists")

	recreated := s.create("frank", "+79261234572")
	s.NotEqual(owner.ID, recreated.ID)
}
