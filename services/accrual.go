package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"browsebux-economy/metrics"
	"browsebux-economy/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// DefaultAccrualInterval is how often an active session earns passively.
const DefaultAccrualInterval = 5 * time.Minute

// AccrualRates is the per-tick passive bundle at level 1.
type AccrualRates struct {
	Robux           float64
	USD             float64
	XP              int64
	ActivityMinutes int64
}

var DefaultAccrualRates = AccrualRates{
	Robux:           0.1,
	USD:             0.01,
	XP:              10,
	ActivityMinutes: 5,
}

// LevelMultiplier scales passive currency linearly with level:
// 1.0x at level 1, 2.0x at level 100, unbounded above.
func LevelMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 + float64(level-1)/99
}

// Earnings returns the bundle for one tick at the given level. XP and
// activity minutes are fixed; only currency scales.
func (r AccrualRates) Earnings(level int) Delta {
	m := LevelMultiplier(level)
	return Delta{
		Robux:           r.Robux * m,
		USD:             r.USD * m,
		XP:              r.XP,
		ActivityMinutes: r.ActivityMinutes,
	}
}

// AccrualLoop runs one gocron job per open session.
type AccrualLoop struct {
	Economy  *EconomyService
	Interval time.Duration
	Rates    AccrualRates

	sched gocron.Scheduler
}

func NewAccrualLoop(economy *EconomyService, interval time.Duration) (*AccrualLoop, error) {
	if interval <= 0 {
		interval = DefaultAccrualInterval
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create accrual scheduler: %w", err)
	}
	sched.Start()

	return &AccrualLoop{
		Economy:  economy,
		Interval: interval,
		Rates:    DefaultAccrualRates,
		sched:    sched,
	}, nil
}

// Start schedules the recurring tick for uid. Runs are singleton: a tick
// that is still running when the next one is due causes that one to be
// skipped, so ticks for a user never overlap or catch up.
func (a *AccrualLoop) Start(uid string) (uuid.UUID, error) {
	job, err := a.sched.NewJob(
		gocron.DurationJob(a.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.Interval)
			defer cancel()
			_, _ = a.Tick(ctx, uid)
		}),
		gocron.WithName("accrual:"+uid),
		gocron.WithTags(uid),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("schedule accrual for %s: %w", uid, err)
	}
	return job.ID(), nil
}

// Stop cancels the job before its next run.
func (a *AccrualLoop) Stop(jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return nil
	}
	return a.sched.RemoveJob(jobID)
}

// JobCount returns the number of scheduled accrual jobs.
func (a *AccrualLoop) JobCount() int {
	return len(a.sched.Jobs())
}

// Shutdown stops the scheduler and every job.
func (a *AccrualLoop) Shutdown() error {
	return a.sched.Shutdown()
}

// Tick credits one interval of passive earnings to uid. The multiplier is
// taken from the persisted level read inside the transaction, not from the
// session's projection. Failures are logged and not retried; the next tick
// is independent.
func (a *AccrualLoop) Tick(ctx context.Context, uid string) (*models.User, error) {
	if _, open := a.Economy.Sessions.Get(uid); !open {
		return nil, ErrSessionNotFound
	}

	u, earned, err := a.Economy.ApplyDeltaFunc(ctx, uid, "accrual", func(latest models.User) Delta {
		return a.Rates.Earnings(latest.Level)
	})
	if err != nil {
		metrics.AccrualTicks.WithLabelValues("error").Inc()
		slog.Error("accrual tick failed", "user_id", uid, "error", err)
		return nil, err
	}

	metrics.AccrualTicks.WithLabelValues("ok").Inc()
	slog.Debug("accrual tick",
		"user_id", uid,
		"robux", earned.Robux,
		"usd", earned.USD,
		"xp", earned.XP,
		"level", u.Level,
	)
	return u, nil
}
