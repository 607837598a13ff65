package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

var sensitiveFields = []domain.FieldKind{domain.FieldKindPhone, domain.FieldKindDateOfBirth}

// LookupByPhone returns the user owning phone, shaped for requesterID. A
// malformed phone cannot belong to any user and reports ErrNotFound.
func (s *Service) LookupByPhone(ctx context.Context, phone string, requesterID uuid.UUID) (view ProfileView, err error) {
	defer s.observe("lookup_by_phone", time.Now(), &err)
	phone = domain.NormalizePhone(phone)
	if domain.ValidatePhone(phone) != nil {
		return ProfileView{}, domain.ErrNotFound
	}
	if err := s.checkLookupRate(ctx, requesterID); err != nil {
		return ProfileView{}, err
	}
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "lookup_by_phone", err)
	}
	return s.shape(ctx, user, requesterID)
}

func (s *Service) LookupByUsername(ctx context.Context, username string, requesterID uuid.UUID) (view ProfileView, err error) {
	defer s.observe("lookup_by_username", time.Now(), &err)
	username = domain.NormalizeUsername(username)
	if domain.ValidateUsername(username) != nil {
		return ProfileView{}, domain.ErrNotFound
	}
	if err := s.checkLookupRate(ctx, requesterID); err != nil {
		return ProfileView{}, err
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "lookup_by_username", err)
	}
	return s.shape(ctx, user, requesterID)
}

// LookupByID returns the user with id, shaped for requesterID. With
// requesterID == id it serves the caller's own record.
func (s *Service) LookupByID(ctx context.Context, id, requesterID uuid.UUID) (view ProfileView, err error) {
	defer s.observe("lookup_by_id", time.Now(), &err)
	if id == uuid.Nil {
		return ProfileView{}, domain.ErrNotFound
	}
	if err := s.checkLookupRate(ctx, requesterID); err != nil {
		return ProfileView{}, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "lookup_by_id", err)
	}
	return s.shape(ctx, user, requesterID)
}

// GetVisibilitySettings returns both modes and allow-lists. Only the owner may
// read them.
func (s *Service) GetVisibilitySettings(ctx context.Context, ownerID, requesterID uuid.UUID) (settings VisibilitySettings, err error) {
	defer s.observe("get_visibility_settings", time.Now(), &err)
	if err := authorizeOwner(ownerID, requesterID); err != nil {
		return VisibilitySettings{}, err
	}
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return VisibilitySettings{}, s.storeFailure(ctx, "get_visibility_settings", err)
	}
	lists, err := s.fetchAllowLists(ctx, user.ID, sensitiveFields)
	if err != nil {
		return VisibilitySettings{}, s.storeFailure(ctx, "get_visibility_settings", err)
	}
	return VisibilitySettings{
		UserID:          user.ID,
		PhoneVisibility: user.PhoneVisibility,
		BirthVisibility: user.BirthVisibility,
		PhoneViewers:    lists[domain.FieldKindPhone].IDs(),
		BirthViewers:    lists[domain.FieldKindDateOfBirth].IDs(),
	}, nil
}

func (s *Service) CheckUsername(ctx context.Context, username string) (check UsernameCheck, err error) {
	defer s.observe("check_username", time.Now(), &err)
	username = domain.NormalizeUsername(username)
	if err := domain.ValidateUsername(username); err != nil {
		return UsernameCheck{}, err
	}
	_, err = s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return UsernameCheck{Username: username, Available: false}, nil
	case errors.Is(err, domain.ErrNotFound):
		return UsernameCheck{Username: username, Available: true}, nil
	default:
		return UsernameCheck{}, s.storeFailure(ctx, "check_username", err)
	}
}

// shape applies the resolver to each sensitive field independently.
func (s *Service) shape(ctx context.Context, user domain.User, viewerID uuid.UUID) (ProfileView, error) {
	var needed []domain.FieldKind
	if viewerID != user.ID {
		for _, kind := range sensitiveFields {
			if user.VisibilityFor(kind) == domain.VisibilitySome {
				needed = append(needed, kind)
			}
		}
	}
	lists, err := s.fetchAllowLists(ctx, user.ID, needed)
	if err != nil {
		return ProfileView{}, s.storeFailure(ctx, "load_allow_lists", err)
	}

	view := ProfileView{UserID: user.ID, Username: user.Username, Name: user.Name, Photo: user.Photo}
	if s.resolve(user, domain.FieldKindPhone, viewerID, lists) == domain.Disclose {
		phone := user.Phone
		view.Phone = &phone
	}
	if s.resolve(user, domain.FieldKindDateOfBirth, viewerID, lists) == domain.Disclose && user.DateOfBirth != nil {
		dob := *user.DateOfBirth
		view.DateOfBirth = &dob
	}
	return view, nil
}

func (s *Service) resolve(user domain.User, kind domain.FieldKind, viewerID uuid.UUID, lists map[domain.FieldKind]domain.AllowList) domain.Disclosure {
	decision := domain.Resolve(user.VisibilityFor(kind), user.ID, viewerID, lists[kind])
	s.metrics.ObserveDisclosure(kind, decision)
	return decision
}

// fetchAllowLists loads the requested lists concurrently.
func (s *Service) fetchAllowLists(ctx context.Context, ownerID uuid.UUID, kinds []domain.FieldKind) (map[domain.FieldKind]domain.AllowList, error) {
	lists := make(map[domain.FieldKind]domain.AllowList, len(kinds))
	if len(kinds) == 0 {
		return lists, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			list, err := s.users.GetAllowList(gctx, ownerID, kind)
			if err != nil {
				return err
			}
			mu.Lock()
			lists[kind] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func ownerView(user domain.User) ProfileView {
	phone := user.Phone
	view := ProfileView{UserID: user.ID, Username: user.Username, Name: user.Name, Photo: user.Photo, Phone: &phone}
	if user.DateOfBirth != nil {
		dob := *user.DateOfBirth
		view.DateOfBirth = &dob
	}
	return view
}
