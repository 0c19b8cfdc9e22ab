package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"browsebux-economy/models"
)

func TestLevelMultiplier(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{0, 1}, {1, 1}, {100, 2}, {199, 3}, {50, 1 + 49.0/99},
	}
	for _, tt := range tests {
		if got := LevelMultiplier(tt.level); !approx(got, tt.want) {
			t.Errorf("LevelMultiplier(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestAccrualTick(t *testing.T) {
	env := newTestEnv(t)
	sess := env.open(t, "acc-1")

	u, err := env.accrual.Tick(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !approx(u.BalanceRobux, 0.1) || !approx(u.BalanceUSD, 0.01) || !approx(u.TotalEarned, 0.1) {
		t.Errorf("balances = %v R$ %v USD total %v", u.BalanceRobux, u.BalanceUSD, u.TotalEarned)
	}
	if u.Experience != 10 || u.ActivityTime != 5 {
		t.Errorf("xp=%d activity=%d", u.Experience, u.ActivityTime)
	}
	if got := sess.User(); got.Experience != 10 {
		t.Errorf("session projection not merged: xp=%d", got.Experience)
	}
}

func TestAccrualScheduledTicks(t *testing.T) {
	const interval = 50 * time.Millisecond
	env := newTestEnvWithInterval(t, interval)
	env.open(t, "acc-timer")

	deadline := time.Now().Add(2 * time.Second)
	for env.user(t, "acc-timer").ActivityTime < 5 {
		if time.Now().After(deadline) {
			t.Fatal("no scheduled tick credited the open session")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := env.sessions.Close("acc-timer"); err != nil {
		t.Fatal(err)
	}
	// let a tick that was already running commit
	time.Sleep(interval)
	before := *env.user(t, "acc-timer")

	time.Sleep(5 * interval)
	after := *env.user(t, "acc-timer")
	if after.ActivityTime != before.ActivityTime || after.Experience != before.Experience || after.BalanceRobux != before.BalanceRobux {
		t.Errorf("closed session still credited: before %+v after %+v", before, after)
	}
}

func TestAccrualTickUsesPersistedLevel(t *testing.T) {
	env := newTestEnv(t)
	sess := env.open(t, "acc-100")

	// bump the level behind the session's back
	_, err := env.store.MutateUser(context.Background(), "acc-100", func(u *models.User) error {
		u.Level = 100
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.User().Level != 1 {
		t.Fatal("projection should still hold the stale level")
	}

	u, err := env.accrual.Tick(context.Background(), "acc-100")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !approx(u.BalanceRobux, 0.2) || !approx(u.BalanceUSD, 0.02) {
		t.Errorf("level 100 earnings = %v R$ %v USD, want 0.2/0.02", u.BalanceRobux, u.BalanceUSD)
	}
	if u.Experience != 10 {
		t.Errorf("xp is not scaled, got %d", u.Experience)
	}
}

func TestAccrualTickLevelsUp(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "acc-lvl")
	_, err := env.store.MutateUser(context.Background(), "acc-lvl", func(u *models.User) error {
		u.Experience = 95
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	u, err := env.accrual.Tick(context.Background(), "acc-lvl")
	if err != nil {
		t.Fatal(err)
	}
	if u.Level != 2 || u.Experience != 5 || u.ExperienceToNextLevel != 150 {
		t.Errorf("got level %d xp %d threshold %d", u.Level, u.Experience, u.ExperienceToNextLevel)
	}
}

func TestAccrualTickWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "acc-closed")
	if err := env.sessions.Close("acc-closed"); err != nil {
		t.Fatal(err)
	}
	before := env.user(t, "acc-closed")

	if _, err := env.accrual.Tick(context.Background(), "acc-closed"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if after := env.user(t, "acc-closed"); after.BalanceRobux != before.BalanceRobux || after.Experience != before.Experience {
		t.Error("closed session was credited")
	}
}

func TestAccrualTickStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "acc-fail")
	env.economy.Store = failingStore{Store: env.store, err: errors.New("db down")}

	if _, err := env.accrual.Tick(context.Background(), "acc-fail"); err == nil {
		t.Fatal("expected error")
	}
	env.economy.Store = env.store
	if _, err := env.accrual.Tick(context.Background(), "acc-fail"); err != nil {
		t.Fatalf("next tick should succeed independently: %v", err)
	}
	if u := env.user(t, "acc-fail"); u.Experience != 10 {
		t.Errorf("xp = %d, want exactly one tick applied", u.Experience)
	}
}

func TestConcurrentMutationsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "acc-race")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			env.accrual.Tick(context.Background(), "acc-race")
		}()
		go func() {
			defer wg.Done()
			env.economy.ApplyDelta(context.Background(), "acc-race", Delta{BonusPoints: 1}, "test")
		}()
	}
	wg.Wait()

	u := env.user(t, "acc-race")
	if u.ActivityTime != 5*n || u.BonusPoints != n {
		t.Fatalf("activity=%d bonus=%d, want %d/%d", u.ActivityTime, u.BonusPoints, 5*n, n)
	}
	if !approx(u.TotalEarned, u.BalanceRobux) {
		t.Errorf("total earned %v != balance %v", u.TotalEarned, u.BalanceRobux)
	}
}

// failingStore fails every mutation.
type failingStore struct {
	Store
	err error
}

func (f failingStore) MutateUser(context.Context, string, func(*models.User) error) (*models.User, error) {
	return nil, f.err
}
