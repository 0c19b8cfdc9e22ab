package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"browsebux-economy/models"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store used by `serve --memory` and tests.
// A single mutex serializes every mutation.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	withdrawals map[string]models.Withdrawal
	subs        map[string]map[int]func(models.User)
	nextSub     int
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]models.User),
		withdrawals: make(map[string]models.Withdrawal),
		subs:        make(map[string]map[int]func(models.User)),
		now:         time.Now,
	}
}

func (s *MemoryStore) GetUser(_ context.Context, uid string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	if existing, ok := s.users[u.ID]; ok {
		s.mu.Unlock()
		return &existing, nil
	}
	now := s.now()
	created := *u
	created.CreatedAt, created.UpdatedAt = now, now
	s.users[u.ID] = created
	s.mu.Unlock()

	s.notify(created)
	return &created, nil
}

func (s *MemoryStore) MutateUser(_ context.Context, uid string, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	u, ok := s.users[uid]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	if err := fn(&u); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	u.UpdatedAt = s.now()
	s.users[uid] = u
	s.mu.Unlock()

	s.notify(u)
	return &u, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*models.User, error) {
	return s.MutateUser(ctx, uid, func(u *models.User) error {
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.AvatarURL != nil {
			u.AvatarURL = *upd.AvatarURL
		}
		return nil
	})
}

func (s *MemoryStore) SubscribeUser(ctx context.Context, uid string, onChange func(models.User)) (func(), error) {
	s.mu.Lock()
	u, ok := s.users[uid]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	id := s.nextSub
	s.nextSub++
	if s.subs[uid] == nil {
		s.subs[uid] = make(map[int]func(models.User))
	}
	s.subs[uid][id] = onChange
	s.mu.Unlock()

	onChange(u)

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			s.mu.Lock()
			delete(s.subs[uid], id)
			s.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return unsubscribe, nil
}

func (s *MemoryStore) notify(u models.User) {
	s.mu.Lock()
	fns := make([]func(models.User), 0, len(s.subs[u.ID]))
	for _, fn := range s.subs[u.ID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func (s *MemoryStore) AppendWithdrawal(_ context.Context, w *models.Withdrawal, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	u, ok := s.users[w.UserID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	if err := fn(&u); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.now()
	u.UpdatedAt = now
	w.ID = uuid.NewString()
	w.CreatedAt, w.UpdatedAt = now, now
	s.users[u.ID] = u
	s.withdrawals[w.ID] = *w
	s.mu.Unlock()

	s.notify(u)
	return &u, nil
}

func (s *MemoryStore) ListWithdrawals(_ context.Context, uid string) ([]models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []models.Withdrawal
	for _, w := range s.withdrawals {
		if w.UserID == uid {
			list = append(list, w)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) GetWithdrawal(_ context.Context, id string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	return &w, nil
}

func (s *MemoryStore) TransitionWithdrawal(_ context.Context, id string, fn func(w *models.Withdrawal, owner *models.User) error) (*models.Withdrawal, *models.User, error) {
	s.mu.Lock()
	w, ok := s.withdrawals[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrWithdrawalNotFound
	}
	u, ok := s.users[w.UserID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ErrUserNotFound
	}
	if err := fn(&w, &u); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	now := s.now()
	w.UpdatedAt, u.UpdatedAt = now, now
	s.withdrawals[id] = w
	s.users[u.ID] = u
	s.mu.Unlock()

	s.notify(u)
	return &w, &u, nil
}
