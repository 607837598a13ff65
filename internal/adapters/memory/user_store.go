package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
)

type allowListKey struct {
	ownerID uuid.UUID
	kind    domain.FieldKind
}

// UserStore keeps users in process memory. One mutex guards the records and
// both secondary indexes, so creates are atomic and same-owner writes are
// serialized.
type UserStore struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]domain.User
	byUsername map[string]uuid.UUID
	byPhone    map[string]uuid.UUID
	allowLists map[allowListKey]domain.AllowList
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[uuid.UUID]domain.User),
		byUsername: make(map[string]uuid.UUID),
		byPhone:    make(map[string]uuid.UUID),
		allowLists: make(map[allowListKey]domain.AllowList),
	}
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *UserStore) GetByPhone(_ context.Context, phone string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

func (s *UserStore) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[params.Username]; taken {
		return domain.User{}, domain.ErrAlreadyExists
	}
	if _, taken := s.byPhone[params.Phone]; taken {
		return domain.User{}, domain.ErrAlreadyExists
	}
	if _, taken := s.users[params.ID]; taken {
		return domain.User{}, domain.ErrAlreadyExists
	}
	user := domain.User{
		ID:              params.ID,
		Username:        params.Username,
		Name:            params.Name,
		Phone:           params.Phone,
		PhoneVisibility: params.PhoneVisibility,
		BirthVisibility: params.BirthVisibility,
		CreatedAt:       params.CreatedAt,
		UpdatedAt:       params.CreatedAt,
	}
	s.users[user.ID] = user
	s.byUsername[user.Username] = user.ID
	s.byPhone[user.Phone] = user.ID
	return copyUser(user), nil
}

func (s *UserStore) Update(_ context.Context, id uuid.UUID, mutation domain.UserMutation) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	switch mutation.Field {
	case domain.FieldName:
		user.Name = mutation.Text
	case domain.FieldUsername:
		if owner, taken := s.byUsername[mutation.Text]; taken && owner != id {
			return domain.User{}, domain.ErrAlreadyExists
		}
		delete(s.byUsername, user.Username)
		user.Username = mutation.Text
		s.byUsername[user.Username] = id
	case domain.FieldPhoto:
		user.Photo = mutation.Text
	case domain.FieldDateOfBirth:
		user.DateOfBirth = copyTime(mutation.DateOfBirth)
	case domain.FieldPhoneVisibility:
		user.PhoneVisibility = mutation.Visibility
	case domain.FieldBirthVisibility:
		user.BirthVisibility = mutation.Visibility
	default:
		return domain.User{}, domain.ErrInvalidInput
	}
	user.UpdatedAt = mutation.At
	s.users[id] = user
	return copyUser(user), nil
}

func (s *UserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byUsername, user.Username)
	delete(s.byPhone, user.Phone)
	for key, list := range s.allowLists {
		if key.ownerID == id {
			delete(s.allowLists, key)
			continue
		}
		delete(list, id)
	}
	return nil
}

func (s *UserStore) GetAllowList(_ context.Context, ownerID uuid.UUID, kind domain.FieldKind) (domain.AllowList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewAllowList(s.allowLists[allowListKey{ownerID: ownerID, kind: kind}].IDs()...), nil
}

func (s *UserStore) GrantViewer(_ context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ownerID]; !ok {
		return domain.ErrNotFound
	}
	key := allowListKey{ownerID: ownerID, kind: kind}
	list, ok := s.allowLists[key]
	if !ok {
		list = domain.NewAllowList()
		s.allowLists[key] = list
	}
	list[viewerID] = struct{}{}
	return nil
}

func (s *UserStore) RevokeViewer(_ context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ownerID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.allowLists[allowListKey{ownerID: ownerID, kind: kind}], viewerID)
	return nil
}

func copyUser(u domain.User) domain.User {
	u.DateOfBirth = copyTime(u.DateOfBirth)
	return u
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
