package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"browsebux-economy/models"
)

func TestSessionOpenCreatesUser(t *testing.T) {
	env := newTestEnv(t)
	sess, err := env.sessions.Open(context.Background(), models.Identity{UID: "abcdefghij"})
	if err != nil {
		t.Fatal(err)
	}
	u := sess.User()
	if u.Name != models.DefaultUserName || u.AvatarURL != models.DefaultAvatarURL {
		t.Errorf("defaults not applied: %+v", u)
	}
	if u.ReferralLink != "browbux.com/ref/abcdefg" {
		t.Errorf("referral link = %q", u.ReferralLink)
	}
	if env.accrual.JobCount() != 1 || env.sessions.Registry.Count() != 1 {
		t.Errorf("jobs=%d sessions=%d", env.accrual.JobCount(), env.sessions.Registry.Count())
	}
}

func TestSessionOpenIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	first := env.open(t, "same")
	second := env.open(t, "same")
	if first != second {
		t.Fatal("opening twice should return the same session")
	}
	if env.accrual.JobCount() != 1 {
		t.Errorf("jobs = %d, want 1", env.accrual.JobCount())
	}
}

func TestSessionOpenKeepsExistingRecord(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "keep")
	env.setBalance(t, "keep", 12)
	env.sessions.Close("keep")

	sess, err := env.sessions.Open(context.Background(), models.Identity{UID: "keep", Name: "Renamed"})
	if err != nil {
		t.Fatal(err)
	}
	if u := sess.User(); u.BalanceRobux != 12 || u.Name != "Tester" {
		t.Errorf("existing record overwritten: %+v", u)
	}
}

func TestSessionClose(t *testing.T) {
	env := newTestEnv(t)
	sess := env.open(t, "bye")
	if !sess.reserveTask("t1") {
		t.Fatal("reserve failed")
	}
	sess.finishTask("t1", true)

	if err := env.sessions.Close("bye"); err != nil {
		t.Fatal(err)
	}
	if env.accrual.JobCount() != 0 {
		t.Errorf("job not removed")
	}
	if sess.IsCompleted("t1") {
		t.Error("completed set not reset")
	}
	if _, err := env.sessions.Get("bye"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after close: %v", err)
	}
	if err := env.sessions.Close("bye"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close: %v", err)
	}
}

func TestSessionCloseAll(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "a")
	env.open(t, "b")
	env.sessions.CloseAll()
	if env.sessions.Registry.Count() != 0 || env.accrual.JobCount() != 0 {
		t.Fatalf("sessions=%d jobs=%d", env.sessions.Registry.Count(), env.accrual.JobCount())
	}
}

func TestSessionOpenRacingCloseLeavesNoJob(t *testing.T) {
	env := newTestEnv(t)
	id := models.Identity{UID: "race", Name: "Racer"}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				env.sessions.Close("race")
			}
		}
	}()

	for i := 0; i < 500; i++ {
		_, err := env.sessions.Open(context.Background(), id)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Open: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	env.sessions.Close("race")

	if n := env.accrual.JobCount(); n != 0 {
		t.Fatalf("%d accrual job(s) left with no open session", n)
	}

	env.open(t, "race")
	if n := env.accrual.JobCount(); n != 1 {
		t.Fatalf("accrual jobs = %d after reopening, want 1", n)
	}
}

func TestSessionMergeIgnoresOlderRecords(t *testing.T) {
	now := time.Now()
	sess := newSession(models.User{ID: "m", Experience: 20, UpdatedAt: now})

	sess.merge(&models.User{ID: "m", Experience: 10, UpdatedAt: now.Add(-time.Second)})
	if sess.User().Experience != 20 {
		t.Error("older record replaced newer projection")
	}
	sess.merge(&models.User{ID: "m", Experience: 30, UpdatedAt: now.Add(time.Second)})
	if sess.User().Experience != 30 {
		t.Error("newer record not merged")
	}
}

func TestSessionTaskReservation(t *testing.T) {
	sess := newSession(models.User{ID: "r"})
	if !sess.reserveTask("t1") {
		t.Fatal("first reserve should succeed")
	}
	if sess.reserveTask("t1") {
		t.Fatal("in-flight task reserved twice")
	}
	if sess.IsCompleted("t1") {
		t.Fatal("in-flight task reported completed")
	}
	sess.finishTask("t1", false)
	if !sess.reserveTask("t1") {
		t.Fatal("released task should be reservable")
	}
	sess.finishTask("t1", true)
	if got := sess.CompletedTasks(); len(got) != 1 || got[0] != "t1" {
		t.Errorf("CompletedTasks = %v", got)
	}
}
