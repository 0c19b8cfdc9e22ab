package services

import (
	"context"

	"browsebux-economy/models"
)

// ProfileUpdate carries the partial profile fields a user may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// Store is the keyed record store behind the economy. Every balance
// mutation goes through MutateUser, AppendWithdrawal or TransitionWithdrawal,
// which read the latest record and write it back atomically; callers never
// compute a balance from a stale copy and overwrite it.
type Store interface {
	GetUser(ctx context.Context, uid string) (*models.User, error)
	// CreateUser inserts u unless a record already exists, and returns the
	// stored record either way.
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	MutateUser(ctx context.Context, uid string, fn func(u *models.User) error) (*models.User, error)
	UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*models.User, error)
	// SubscribeUser calls onChange with the current record and again after
	// every change until the returned func is called or ctx ends.
	SubscribeUser(ctx context.Context, uid string, onChange func(models.User)) (func(), error)

	// AppendWithdrawal runs fn on the locked owner record and, if it
	// succeeds, saves the owner and inserts w in the same transaction.
	// w.ID is assigned by the store.
	AppendWithdrawal(ctx context.Context, w *models.Withdrawal, fn func(u *models.User) error) (*models.User, error)
	ListWithdrawals(ctx context.Context, uid string) ([]models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	TransitionWithdrawal(ctx context.Context, id string, fn func(w *models.Withdrawal, owner *models.User) error) (*models.Withdrawal, *models.User, error)
}
