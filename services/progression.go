package services

import (
	"math"

	"browsebux-economy/models"
)

// nextThreshold returns the XP needed for the following level:
// floor(threshold * 1.5), bumped by one when that would not grow (threshold 1).
func nextThreshold(threshold int64) int64 {
	next := threshold + threshold/2
	if next <= threshold {
		next = threshold + 1
	}
	return next
}

// ApplyExperienceDelta adds deltaXP to the user's experience and rolls any
// overflow into level-ups. It works on a copy and returns the updated record
// plus the number of levels gained. Negative deltas are ignored.
//
// On return 0 <= Experience < ExperienceToNextLevel.
func ApplyExperienceDelta(u models.User, deltaXP int64) (models.User, int) {
	if u.ExperienceToNextLevel < 1 {
		u.ExperienceToNextLevel = models.DefaultXPToNextLevel
	}
	if u.Level < 1 {
		u.Level = models.DefaultLevel
	}
	if u.Experience < 0 {
		u.Experience = 0
	}
	if deltaXP > 0 {
		if u.Experience > math.MaxInt64-deltaXP {
			u.Experience = math.MaxInt64
		} else {
			u.Experience += deltaXP
		}
	}

	gained := 0
	for u.Experience >= u.ExperienceToNextLevel {
		u.Experience -= u.ExperienceToNextLevel
		u.Level++
		u.ExperienceToNextLevel = nextThreshold(u.ExperienceToNextLevel)
		gained++
	}
	return u, gained
}

// LevelProgress returns the percentage (0-100) of the way to the next level.
func LevelProgress(u models.User) float64 {
	if u.ExperienceToNextLevel <= 0 {
		return 0
	}
	return float64(u.Experience) / float64(u.ExperienceToNextLevel) * 100
}

// Delta is a bundle of credits applied to a user in one atomic mutation.
type Delta struct {
	Robux           float64
	USD             float64
	XP              int64
	BonusPoints     int64
	ActivityMinutes int64
	TasksCompleted  int64
}

// Apply credits d onto u in place and runs the level-up math over the whole
// record, so balances, counters and progression are written back together.
// Returns the number of levels gained.
func (d Delta) Apply(u *models.User) int {
	if d.Robux > 0 {
		u.BalanceRobux += d.Robux
		u.TotalEarned += d.Robux
	}
	if d.USD > 0 {
		u.BalanceUSD += d.USD
	}
	if d.BonusPoints > 0 {
		u.BonusPoints += d.BonusPoints
	}
	if d.ActivityMinutes > 0 {
		u.ActivityTime += d.ActivityMinutes
	}
	if d.TasksCompleted > 0 {
		u.TasksCompleted += d.TasksCompleted
	}

	next, gained := ApplyExperienceDelta(*u, d.XP)
	*u = next
	return gained
}
