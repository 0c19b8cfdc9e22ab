package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewUserDefaults(t *testing.T) {
	u := NewUser(Identity{UID: "XyZ123456789"})
	if u.Name != DefaultUserName || u.AvatarURL != DefaultAvatarURL {
		t.Errorf("fallbacks not applied: %+v", u)
	}
	if u.Level != 1 || u.ExperienceToNextLevel != 100 || u.Experience != 0 {
		t.Errorf("progression defaults: %+v", u)
	}
	if u.BalanceRobux != 0 || u.BalanceUSD != 0 || u.BonusPoints != 0 {
		t.Errorf("balances not zero: %+v", u)
	}
	if u.ReferralLink != "browbux.com/ref/XyZ1234" {
		t.Errorf("ReferralLink = %q", u.ReferralLink)
	}

	named := NewUser(Identity{UID: "u", Name: "Ada", AvatarURL: "https://img/a.png"})
	if named.Name != "Ada" || named.AvatarURL != "https://img/a.png" {
		t.Errorf("identity fields ignored: %+v", named)
	}
}

func TestReferralLinkShortUID(t *testing.T) {
	if got := ReferralLink("abc"); got != "browbux.com/ref/abc" {
		t.Errorf("ReferralLink = %q", got)
	}
}

func TestWithdrawalStatus(t *testing.T) {
	tests := []struct {
		s               WithdrawalStatus
		valid, terminal bool
	}{
		{WithdrawalStatusPending, true, false},
		{WithdrawalStatusApproved, true, true},
		{WithdrawalStatusRejected, true, true},
		{"paid", false, false},
	}
	for _, tt := range tests {
		if tt.s.Valid() != tt.valid || tt.s.Terminal() != tt.terminal {
			t.Errorf("%q: valid=%v terminal=%v", tt.s, tt.s.Valid(), tt.s.Terminal())
		}
	}
}

func TestWithdrawalJSON(t *testing.T) {
	w := Withdrawal{
		ID:     "w1",
		UserID: "u1",
		Date:   Today(time.Date(2026, 5, 17, 23, 59, 0, 0, time.UTC)),
		Amount: 60,
		Fee:    24,
		Status: WithdrawalStatusPending,
	}
	raw, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	json.Unmarshal(raw, &out)
	if out["date"] != "2026-05-17" || out["net_amount"] != 36.0 || out["status"] != "pending" {
		t.Errorf("json = %s", raw)
	}
}
