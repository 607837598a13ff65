package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func (s *userStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *userStore) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.takeUser(ctx, "get user by id", "user_id = ?", id)
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.takeUser(ctx, "get user by username", "username = ?", username)
}

func (s *userStore) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.takeUser(ctx, "get user by phone", "phone = ?", phone)
}

func (s *userStore) takeUser(ctx context.Context, op, query string, args ...any) (domain.User, error) {
	var rec userModel
	if err := s.db.WithContext(ctx).Where(query, args...).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, storeError(op, err)
	}
	return toDomainUser(rec), nil
}

// Create relies on the unique indexes over username and phone, so two
// concurrent inserts with the same key cannot both commit.
func (s *userStore) Create(ctx context.Context, params ports.CreateUserParams) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rec := userModel{
		UserID:          params.ID,
		Username:        params.Username,
		Name:            params.Name,
		Phone:           params.Phone,
		PhoneVisibility: string(params.PhoneVisibility),
		BirthVisibility: string(params.BirthVisibility),
		CreatedAt:       params.CreatedAt,
		UpdatedAt:       params.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, storeError("create user", err)
	}
	return toDomainUser(rec), nil
}

func (s *userStore) Update(ctx context.Context, id uuid.UUID, mutation domain.UserMutation) (domain.User, error) {
	updates, ok := mutationColumns(mutation)
	if !ok {
		return domain.User{}, domain.ErrInvalidInput
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out userModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, id, &out); err != nil {
			return err
		}
		if err := tx.Model(&userModel{}).Where("user_id = ?", id).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return err
		}
		return tx.Where("user_id = ?", id).Take(&out).Error
	})
	if err != nil {
		return domain.User{}, storeError("update user", err)
	}
	return toDomainUser(out), nil
}

func (s *userStore) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userModel
		if err := lockUser(tx, id, &rec); err != nil {
			return err
		}
		if err := tx.Where("viewer_id = ?", id).Delete(&visibilityGrantModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&visibilityGrantModel{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&userModel{}).Error
	})
	return storeError("delete user", err)
}

func (s *userStore) GetAllowList(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind) (domain.AllowList, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var viewers []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&visibilityGrantModel{}).
		Where("owner_id = ? AND field_kind = ?", ownerID, string(kind)).
		Pluck("viewer_id", &viewers).Error; err != nil {
		return nil, storeError("get allow-list", err)
	}
	return domain.NewAllowList(viewers...), nil
}

func (s *userStore) GrantViewer(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID, at time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner userModel
		if err := lockUser(tx, ownerID, &owner); err != nil {
			return err
		}
		grant := visibilityGrantModel{OwnerID: ownerID, FieldKind: string(kind), ViewerID: viewerID, GrantedAt: at}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error
	})
	return storeError("grant viewer", err)
}

func (s *userStore) RevokeViewer(ctx context.Context, ownerID uuid.UUID, kind domain.FieldKind, viewerID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner userModel
		if err := lockUser(tx, ownerID, &owner); err != nil {
			return err
		}
		return tx.Where("owner_id = ? AND field_kind = ? AND viewer_id = ?", ownerID, string(kind), viewerID).
			Delete(&visibilityGrantModel{}).Error
	})
	return storeError("revoke viewer", err)
}

// lockUser takes the owner's row lock for the rest of the transaction.
func lockUser(tx *gorm.DB, id uuid.UUID, dst *userModel) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", id).Take(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
