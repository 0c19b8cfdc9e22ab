package models

import (
	"time"
)

// Defaults applied when a user record is first created for an identity.
const (
	DefaultUserName      = "New User"
	DefaultAvatarURL     = "https://picsum.photos/100"
	DefaultLevel         = 1
	DefaultXPToNextLevel = int64(100)
	ReferralLinkBase     = "browbux.com/ref/"
	referralCodeLength   = 7
)

// Identity is what the identity provider tells us about a signed-in user.
type Identity struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// User is the economy record owned by a single identity.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(128)" json:"uid"`
	Name      string `gorm:"not null" json:"name"`
	Email     string `gorm:"index" json:"email"`
	AvatarURL string `gorm:"type:text" json:"avatar_url"`

	// Balances
	BalanceRobux float64 `gorm:"not null;default:0" json:"balance_robux"`
	BalanceUSD   float64 `gorm:"column:balance_usd;not null;default:0" json:"balance_usd"`
	BonusPoints  int64   `gorm:"not null;default:0" json:"bonus_points"`

	ReferralLink string `gorm:"not null" json:"referral_link"` // set once at creation

	// Progression
	Level                 int   `gorm:"not null;default:1" json:"level"`
	Experience            int64 `gorm:"not null;default:0" json:"experience"`
	ExperienceToNextLevel int64 `gorm:"not null;default:100" json:"experience_to_next_level"`

	// Lifetime counters, never decreased
	TotalEarned    float64 `gorm:"not null;default:0" json:"total_earned"`
	TasksCompleted int64   `gorm:"not null;default:0" json:"tasks_completed"`
	ActivityTime   int64   `gorm:"not null;default:0" json:"activity_time"` // minutes

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewUser builds the first record for an identity with the fixed defaults.
func NewUser(id Identity) *User {
	name := id.Name
	if name == "" {
		name = DefaultUserName
	}
	avatar := id.AvatarURL
	if avatar == "" {
		avatar = DefaultAvatarURL
	}
	return &User{
		ID:                    id.UID,
		Name:                  name,
		Email:                 id.Email,
		AvatarURL:             avatar,
		ReferralLink:          ReferralLink(id.UID),
		Level:                 DefaultLevel,
		ExperienceToNextLevel: DefaultXPToNextLevel,
	}
}

// ReferralLink derives the shareable referral link from a uid.
func ReferralLink(uid string) string {
	code := uid
	if len(code) > referralCodeLength {
		code = code[:referralCodeLength]
	}
	return ReferralLinkBase + code
}
