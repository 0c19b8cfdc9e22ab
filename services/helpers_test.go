package services

import (
	"context"
	"math"
	"testing"
	"time"

	"browsebux-economy/models"
)

const epsilon = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < epsilon }

type testEnv struct {
	store    *MemoryStore
	economy  *EconomyService
	accrual  *AccrualLoop
	sessions *SessionManager
}

// newTestEnv wires the economy over a MemoryStore. The accrual interval is
// long enough that scheduled ticks never fire during a test; tests call Tick
// directly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithInterval(t, time.Hour)
}

func newTestEnvWithInterval(t *testing.T, interval time.Duration) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	economy := NewEconomyService(store, NewSessionRegistry())
	accrual, err := NewAccrualLoop(economy, interval)
	if err != nil {
		t.Fatalf("NewAccrualLoop: %v", err)
	}
	t.Cleanup(func() { accrual.Shutdown() })
	return &testEnv{
		store:    store,
		economy:  economy,
		accrual:  accrual,
		sessions: NewSessionManager(economy, accrual),
	}
}

func (e *testEnv) open(t *testing.T, uid string) *Session {
	t.Helper()
	sess, err := e.sessions.Open(context.Background(), models.Identity{UID: uid, Name: "Tester"})
	if err != nil {
		t.Fatalf("Open(%s): %v", uid, err)
	}
	return sess
}

func (e *testEnv) setBalance(t *testing.T, uid string, robux float64) {
	t.Helper()
	_, err := e.store.MutateUser(context.Background(), uid, func(u *models.User) error {
		u.BalanceRobux = robux
		return nil
	})
	if err != nil {
		t.Fatalf("set balance: %v", err)
	}
}

func (e *testEnv) user(t *testing.T, uid string) *models.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), uid)
	if err != nil {
		t.Fatalf("GetUser(%s): %v", uid, err)
	}
	return u
}
