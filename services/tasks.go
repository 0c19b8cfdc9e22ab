package services

import (
	"context"
	"log/slog"

	"browsebux-economy/metrics"
	"browsebux-economy/models"
)

// TaskService applies daily-task reward bundles.
type TaskService struct {
	Economy *EconomyService
	Catalog *TaskCatalog
}

func NewTaskService(economy *EconomyService, catalog *TaskCatalog) *TaskService {
	return &TaskService{Economy: economy, Catalog: catalog}
}

// CompleteTask rewards taskID once per session. A repeat completion is a
// no-op that returns the session's current record with applied=false.
func (s *TaskService) CompleteTask(ctx context.Context, sess *Session, taskID string) (*models.User, bool, error) {
	task, ok := s.Catalog.Get(taskID)
	if !ok {
		return nil, false, ErrTaskNotFound
	}

	if !sess.reserveTask(task.ID) {
		metrics.TaskCompletions.WithLabelValues("duplicate").Inc()
		u := sess.User()
		return &u, false, nil
	}

	u, err := s.Economy.ApplyDelta(ctx, sess.UserID, Delta{
		Robux:          task.RewardRobux,
		USD:            task.RewardUSD,
		XP:             task.RewardXP,
		TasksCompleted: 1,
	}, "task:"+task.ID)
	sess.finishTask(task.ID, err == nil)
	if err != nil {
		metrics.TaskCompletions.WithLabelValues("error").Inc()
		return nil, false, err
	}

	metrics.TaskCompletions.WithLabelValues("applied").Inc()
	slog.Info("task completed", "user_id", sess.UserID, "task_id", task.ID, "level", u.Level)
	return u, true, nil
}

// TaskStatus is a catalog entry with its completion state for a session.
type TaskStatus struct {
	models.DailyTask
	Completed bool `json:"completed"`
}

// TaskBoard is the daily task list with progress for one session.
type TaskBoard struct {
	Tasks     []TaskStatus `json:"tasks"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Progress  float64      `json:"progress"` // percent
}

func (s *TaskService) Board(sess *Session) TaskBoard {
	board := TaskBoard{Total: s.Catalog.Len()}
	for _, t := range s.Catalog.All() {
		done := sess.IsCompleted(t.ID)
		if done {
			board.Completed++
		}
		board.Tasks = append(board.Tasks, TaskStatus{DailyTask: t, Completed: done})
	}
	if board.Total > 0 {
		board.Progress = float64(board.Completed) / float64(board.Total) * 100
	}
	return board
}
