package services

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"browsebux-economy/models"
)

func TestMemoryStoreCreateUserIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1", Name: "First"}))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1", Name: "Second"}))
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "First" || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("existing record replaced: %+v", second)
	}
}

func TestMemoryStoreMutateUserRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1"}))

	boom := errors.New("boom")
	_, err := s.MutateUser(ctx, "u1", func(u *models.User) error {
		u.BalanceRobux = 999
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if u, _ := s.GetUser(ctx, "u1"); u.BalanceRobux != 0 {
		t.Errorf("partial write kept: %v", u.BalanceRobux)
	}
	if _, err := s.MutateUser(ctx, "nobody", func(*models.User) error { return nil }); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: %v", err)
	}
}

func TestMemoryStoreSubscribeUser(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1"}))

	seen := make(chan models.User, 4)
	unsubscribe, err := s.SubscribeUser(ctx, "u1", func(u models.User) { seen <- u })
	if err != nil {
		t.Fatal(err)
	}

	first := <-seen
	if first.ID != "u1" || first.Experience != 0 {
		t.Fatalf("initial record = %+v", first)
	}

	s.MutateUser(ctx, "u1", func(u *models.User) error { u.Experience = 5; return nil })
	select {
	case u := <-seen:
		if u.Experience != 5 {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	unsubscribe()
	s.MutateUser(ctx, "u1", func(u *models.User) error { u.Experience = 6; return nil })
	select {
	case u := <-seen:
		t.Errorf("update after unsubscribe: %+v", u)
	default:
	}

	if _, err := s.SubscribeUser(ctx, "nobody", func(models.User) {}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("subscribe missing user: %v", err)
	}
}

func TestMemoryStoreUnsubscribeReleasesWatcher(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1"}))

	base := runtime.NumGoroutine()
	const n = 100
	for i := 0; i < n; i++ {
		unsubscribe, err := s.SubscribeUser(ctx, "u1", func(models.User) {})
		if err != nil {
			t.Fatal(err)
		}
		unsubscribe()
	}

	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine()-base >= n/2 {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines still running after unsubscribe", runtime.NumGoroutine()-base)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(s.subs["u1"]) != 0 {
		t.Errorf("subscribers left: %d", len(s.subs["u1"]))
	}
}

func TestMemoryStoreAppendWithdrawal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateUser(ctx, models.NewUser(models.Identity{UID: "u1"}))

	w := &models.Withdrawal{UserID: "u1", Amount: 50, Status: models.WithdrawalStatusPending}
	refuse := errors.New("refused")
	if _, err := s.AppendWithdrawal(ctx, w, func(*models.User) error { return refuse }); !errors.Is(err, refuse) {
		t.Fatalf("err = %v", err)
	}
	if list, _ := s.ListWithdrawals(ctx, "u1"); len(list) != 0 {
		t.Fatal("refused withdrawal stored")
	}

	if _, err := s.AppendWithdrawal(ctx, w, func(*models.User) error { return nil }); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetWithdrawal(ctx, w.ID)
	if err != nil || got.Amount != 50 {
		t.Fatalf("GetWithdrawal = %+v, %v", got, err)
	}
}
