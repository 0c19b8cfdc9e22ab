package models

// Difficulty of a daily task
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// DailyTask is a static catalog entry with a fixed reward bundle.
type DailyTask struct {
	ID          string     `toml:"id" json:"id"`
	Title       string     `toml:"title" json:"title"`
	Description string     `toml:"description" json:"description"`
	Difficulty  Difficulty `toml:"difficulty" json:"difficulty"`
	RewardRobux float64    `toml:"reward_robux" json:"reward_robux"`
	RewardUSD   float64    `toml:"reward_usd" json:"reward_usd"`
	RewardXP    int64      `toml:"reward_xp" json:"reward_xp"`
}
