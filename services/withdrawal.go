package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"browsebux-economy/metrics"
	"browsebux-economy/models"
)

// WithdrawalPolicy holds the rules a request must pass.
type WithdrawalPolicy struct {
	MinAmount      float64
	FeeRate        float64
	PayoutHost     string // host must contain this
	PayoutPath     string // path must contain this
	RefundRejected bool   // credit the amount back when a request is rejected
}

var DefaultWithdrawalPolicy = WithdrawalPolicy{
	MinAmount:  50,
	FeeRate:    0.4,
	PayoutHost: "roblox.com",
	PayoutPath: "/game-pass/",
}

// Fee is frozen at submission and never recomputed.
func (p WithdrawalPolicy) Fee(amount float64) float64 {
	return amount * p.FeeRate
}

// ValidLink checks the gamepass link structurally; it does not verify that
// the item exists.
func (p WithdrawalPolicy) ValidLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), p.PayoutHost) &&
		strings.Contains(u.Path, p.PayoutPath)
}

// WithdrawalRequest is a draft submitted by the user.
type WithdrawalRequest struct {
	Amount       float64 `json:"amount"`
	GamepassLink string  `json:"gamepass_link"`
	FeeAccepted  bool    `json:"fee_accepted"`
}

// validate returns every failing reason. The fee acknowledgment is only
// checked for submission, not for previews.
func (p WithdrawalPolicy) validate(req WithdrawalRequest, balance float64, requireAck bool) []string {
	var reasons []string
	switch {
	case math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0):
		reasons = append(reasons, ReasonAmountInvalid)
	case req.Amount < p.MinAmount:
		reasons = append(reasons, ReasonAmountTooLow)
	case balance < req.Amount:
		reasons = append(reasons, ReasonInsufficientBalance)
	}
	if !p.ValidLink(req.GamepassLink) {
		reasons = append(reasons, ReasonLinkInvalid)
	}
	if requireAck && !req.FeeAccepted {
		reasons = append(reasons, ReasonFeeNotAccepted)
	}
	return reasons
}

// WithdrawalQuote is the fee breakdown shown before submission.
type WithdrawalQuote struct {
	Amount     float64  `json:"amount"`
	Fee        float64  `json:"fee"`
	NetAmount  float64  `json:"net_amount"`
	FeeText    string   `json:"fee_text"`
	NetText    string   `json:"net_text"`
	Balance    float64  `json:"balance"`
	CanRequest bool     `json:"can_request"`
	Reasons    []string `json:"reasons,omitempty"`
}

func (p WithdrawalPolicy) quote(req WithdrawalRequest, balance float64) WithdrawalQuote {
	fee := p.Fee(req.Amount)
	net := req.Amount - fee
	reasons := p.validate(req, balance, false)
	return WithdrawalQuote{
		Amount:     req.Amount,
		Fee:        fee,
		NetAmount:  net,
		FeeText:    FormatRobux(fee),
		NetText:    FormatRobux(net),
		Balance:    balance,
		CanRequest: len(reasons) == 0,
		Reasons:    reasons,
	}
}

// WithdrawalService runs the Draft → Pending → Approved|Rejected workflow.
type WithdrawalService struct {
	Economy *EconomyService
	Policy  WithdrawalPolicy
	Now     func() time.Time
}

func NewWithdrawalService(economy *EconomyService, policy WithdrawalPolicy) *WithdrawalService {
	return &WithdrawalService{Economy: economy, Policy: policy, Now: time.Now}
}

// Preview computes fee and net amount for a draft without persisting it.
func (s *WithdrawalService) Preview(ctx context.Context, uid string, req WithdrawalRequest) (WithdrawalQuote, error) {
	u, err := s.Economy.GetUser(ctx, uid)
	if err != nil {
		return WithdrawalQuote{}, err
	}
	return s.Policy.quote(req, u.BalanceRobux), nil
}

// Submit validates the request, debits the full amount from the Robux
// balance and records a Pending withdrawal, all in one transaction. Funds are
// escrowed at request time. On validation failure nothing is written and a
// *ValidationError is returned.
func (s *WithdrawalService) Submit(ctx context.Context, uid string, req WithdrawalRequest) (*models.Withdrawal, *models.User, error) {
	current, err := s.Economy.GetUser(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	if reasons := s.Policy.validate(req, current.BalanceRobux, true); len(reasons) > 0 {
		metrics.Withdrawals.WithLabelValues("invalid").Inc()
		return nil, nil, &ValidationError{Reasons: reasons}
	}

	w := &models.Withdrawal{
		UserID:       uid,
		Date:         models.Today(s.Now()),
		Amount:       req.Amount,
		Fee:          s.Policy.Fee(req.Amount),
		Status:       models.WithdrawalStatusPending,
		GamepassLink: strings.TrimSpace(req.GamepassLink),
	}

	u, err := s.Economy.Store.AppendWithdrawal(ctx, w, func(u *models.User) error {
		// balance may have moved since the pre-check
		if u.BalanceRobux < w.Amount {
			return &ValidationError{Reasons: []string{ReasonInsufficientBalance}}
		}
		u.BalanceRobux -= w.Amount
		return nil
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.Withdrawals.WithLabelValues("invalid").Inc()
			return nil, nil, verr
		}
		metrics.Withdrawals.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("submit withdrawal for %s: %w", uid, err)
	}

	s.Economy.mergeSession(u)
	metrics.Withdrawals.WithLabelValues("submitted").Inc()
	metrics.EscrowedRobux.Add(w.Amount)
	slog.Info("withdrawal requested",
		"user_id", uid,
		"withdrawal_id", w.ID,
		"amount", w.Amount,
		"fee", w.Fee,
		"balance_robux", u.BalanceRobux,
	)
	return w, u, nil
}

// List returns the user's withdrawals, newest date first.
func (s *WithdrawalService) List(ctx context.Context, uid string) ([]models.Withdrawal, error) {
	list, err := s.Economy.Store.ListWithdrawals(ctx, uid)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		di, dj := time.Time(list[i].Date), time.Time(list[j].Date)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// SetStatus applies an external review decision. Only Pending requests can
// move, and only to Approved or Rejected. When RefundRejected is set a
// rejection credits the escrowed amount back.
func (s *WithdrawalService) SetStatus(ctx context.Context, id string, status models.WithdrawalStatus) (*models.Withdrawal, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: target status %q", ErrInvalidTransition, status)
	}

	w, u, err := s.Economy.Store.TransitionWithdrawal(ctx, id, func(w *models.Withdrawal, owner *models.User) error {
		if w.Status != models.WithdrawalStatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, status)
		}
		w.Status = status
		if status == models.WithdrawalStatusRejected && s.Policy.RefundRejected {
			owner.BalanceRobux += w.Amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Economy.mergeSession(u)
	metrics.WithdrawalTransitions.WithLabelValues(string(status)).Inc()
	slog.Info("withdrawal status changed",
		"withdrawal_id", w.ID,
		"user_id", w.UserID,
		"status", w.Status,
		"refunded", status == models.WithdrawalStatusRejected && s.Policy.RefundRejected,
	)
	return w, nil
}
