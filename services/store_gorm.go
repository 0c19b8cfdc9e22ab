package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"browsebux-economy/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps users and withdrawals in PostgreSQL.
type GormStore struct {
	DB           *gorm.DB
	PollInterval time.Duration // SubscribeUser polling period
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, PollInterval: 2 * time.Second}
}

// Migrate creates or updates the tables owned by the economy.
func (s *GormStore) Migrate() error {
	return s.DB.AutoMigrate(&models.User{}, &models.Withdrawal{})
}

func (s *GormStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %s: %w", uid, err)
	}
	return &u, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return s.GetUser(ctx, u.ID)
}

// lockUser loads the user row with FOR UPDATE inside tx.
func lockUser(tx *gorm.DB, uid string) (*models.User, error) {
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) MutateUser(ctx context.Context, uid string, fn func(u *models.User) error) (*models.User, error) {
	var out *models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, uid)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.AvatarURL != nil {
		fields["avatar_url"] = *upd.AvatarURL
	}
	if len(fields) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile %s: %w", uid, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return s.GetUser(ctx, uid)
}

// SubscribeUser polls the row and reports it whenever updated_at moves.
func (s *GormStore) SubscribeUser(ctx context.Context, uid string, onChange func(models.User)) (func(), error) {
	current, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	onChange(*current)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		last := current.UpdatedAt
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u, err := s.GetUser(ctx, uid)
				if err != nil {
					if ctx.Err() == nil {
						slog.Warn("user subscription poll failed", "user_id", uid, "error", err)
					}
					continue
				}
				if !u.UpdatedAt.After(last) {
					continue
				}
				last = u.UpdatedAt
				onChange(*u)
			}
		}
	}()
	return cancel, nil
}

func (s *GormStore) AppendWithdrawal(ctx context.Context, w *models.Withdrawal, fn func(u *models.User) error) (*models.User, error) {
	var out *models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, w.UserID)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		w.ID = uuid.NewString()
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListWithdrawals(ctx context.Context, uid string) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("date DESC").
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list withdrawals %s: %w", uid, err)
	}
	return list, nil
}

func (s *GormStore) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("load withdrawal %s: %w", id, err)
	}
	return &w, nil
}

func (s *GormStore) TransitionWithdrawal(ctx context.Context, id string, fn func(w *models.Withdrawal, owner *models.User) error) (*models.Withdrawal, *models.User, error) {
	var outW *models.Withdrawal
	var outU *models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var w models.Withdrawal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		u, err := lockUser(tx, w.UserID)
		if err != nil {
			return err
		}
		if err := fn(&w, u); err != nil {
			return err
		}
		if err := tx.Model(&w).Update("status", w.Status).Error; err != nil {
			return err
		}
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		outW, outU = &w, u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outW, outU, nil
}
