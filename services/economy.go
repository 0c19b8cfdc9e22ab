package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"browsebux-economy/metrics"
	"browsebux-economy/models"
)

// EconomyService owns user records and applies credit bundles to them.
type EconomyService struct {
	Store    Store
	Sessions *SessionRegistry
}

func NewEconomyService(store Store, sessions *SessionRegistry) *EconomyService {
	return &EconomyService{Store: store, Sessions: sessions}
}

// EnsureUser returns the record for the identity, creating it with the
// fixed defaults on first observation (idempotent).
func (s *EconomyService) EnsureUser(ctx context.Context, id models.Identity) (*models.User, error) {
	if id.UID == "" {
		return nil, fmt.Errorf("ensure user: empty uid")
	}
	u, err := s.Store.GetUser(ctx, id.UID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u, err = s.Store.CreateUser(ctx, models.NewUser(id))
	if err != nil {
		return nil, err
	}
	slog.Info("user created", "user_id", u.ID, "referral_link", u.ReferralLink)
	return u, nil
}

func (s *EconomyService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	return s.Store.GetUser(ctx, uid)
}

// ApplyDelta credits a fixed bundle to the user atomically.
func (s *EconomyService) ApplyDelta(ctx context.Context, uid string, d Delta, reason string) (*models.User, error) {
	u, _, err := s.ApplyDeltaFunc(ctx, uid, reason, func(models.User) Delta { return d })
	return u, err
}

// ApplyDeltaFunc computes the bundle from the freshly locked record (so rates
// that depend on level use the persisted level) and applies it in the same
// transaction. The committed record is merged into the open session.
func (s *EconomyService) ApplyDeltaFunc(ctx context.Context, uid, reason string, compute func(models.User) Delta) (*models.User, Delta, error) {
	var applied Delta
	var gained int
	u, err := s.Store.MutateUser(ctx, uid, func(u *models.User) error {
		applied = compute(*u)
		gained = applied.Apply(u)
		return nil
	})
	if err != nil {
		return nil, Delta{}, fmt.Errorf("apply %s for %s: %w", reason, uid, err)
	}

	if gained > 0 {
		metrics.LevelUps.Add(float64(gained))
		slog.Info("level up", "user_id", uid, "level", u.Level, "levels_gained", gained, "reason", reason)
	}
	s.mergeSession(u)
	return u, applied, nil
}

// UpdateProfile changes display fields and refreshes the session view.
func (s *EconomyService) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*models.User, error) {
	u, err := s.Store.UpdateProfile(ctx, uid, upd)
	if err != nil {
		return nil, err
	}
	s.mergeSession(u)
	return u, nil
}

func (s *EconomyService) mergeSession(u *models.User) {
	if sess, ok := s.Sessions.Get(u.ID); ok {
		sess.merge(u)
	}
}
