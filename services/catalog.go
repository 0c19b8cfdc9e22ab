package services

import (
	_ "embed"
	"fmt"
	"os"

	"browsebux-economy/models"

	"github.com/BurntSushi/toml"
)

//go:embed default_tasks.toml
var defaultTaskCatalog string

// TaskCatalog is the immutable list of daily tasks loaded at startup.
type TaskCatalog struct {
	tasks []models.DailyTask
	byID  map[string]models.DailyTask
}

type catalogFile struct {
	Tasks []models.DailyTask `toml:"task"`
}

// LoadTaskCatalog reads the catalog from path, or the built-in catalog when
// path is empty.
func LoadTaskCatalog(path string) (*TaskCatalog, error) {
	data := defaultTaskCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read task catalog: %w", err)
		}
		data = string(raw)
	}
	return ParseTaskCatalog(data)
}

// ParseTaskCatalog decodes and validates a TOML catalog.
func ParseTaskCatalog(data string) (*TaskCatalog, error) {
	var f catalogFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewTaskCatalog(f.Tasks)
}

func NewTaskCatalog(tasks []models.DailyTask) (*TaskCatalog, error) {
	c := &TaskCatalog{byID: make(map[string]models.DailyTask, len(tasks))}
	for _, t := range tasks {
		switch {
		case t.ID == "":
			return nil, fmt.Errorf("%w: task with empty id", ErrInvalidCatalog)
		case !t.Difficulty.Valid():
			return nil, fmt.Errorf("%w: task %s has difficulty %q", ErrInvalidCatalog, t.ID, t.Difficulty)
		case t.RewardRobux < 0 || t.RewardUSD < 0 || t.RewardXP < 0:
			return nil, fmt.Errorf("%w: task %s has a negative reward", ErrInvalidCatalog, t.ID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %s", ErrInvalidCatalog, t.ID)
		}
		c.byID[t.ID] = t
		c.tasks = append(c.tasks, t)
	}
	return c, nil
}

func (c *TaskCatalog) Get(id string) (models.DailyTask, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// All returns the tasks in catalog order.
func (c *TaskCatalog) All() []models.DailyTask {
	out := make([]models.DailyTask, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *TaskCatalog) Len() int { return len(c.tasks) }
