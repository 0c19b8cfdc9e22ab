package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"browsebux-economy/models"
	"browsebux-economy/services"
)

// PayoutStatusChange is a review decision reported by the payout service.
type PayoutStatusChange struct {
	WithdrawalID string                  `json:"withdrawal_id"`
	Status       models.WithdrawalStatus `json:"status"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// PayoutSyncClient polls the payout service for withdrawal status changes.
type PayoutSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewPayoutSyncClient(baseURL, token string, httpClient *http.Client) *PayoutSyncClient {
	return &PayoutSyncClient{BaseURL: baseURL, Token: token, HTTPClient: httpClient}
}

func (c *PayoutSyncClient) GetStatusChanges(ctx context.Context, since time.Time) ([]PayoutStatusChange, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/payouts/changes", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payout service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payout service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Changes []PayoutStatusChange `json:"changes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode payout service response: %w", err)
	}
	return response.Changes, nil
}

// StatusChangeSource is anything that reports payout decisions.
type StatusChangeSource interface {
	GetStatusChanges(ctx context.Context, since time.Time) ([]PayoutStatusChange, error)
}

// StatusApplier moves a withdrawal to its reviewed status.
type StatusApplier interface {
	SetStatus(ctx context.Context, id string, status models.WithdrawalStatus) (*models.Withdrawal, error)
}

// SyncPayouts applies one batch of changes. Changes that are already applied
// or refer to unknown withdrawals are skipped. It returns how many were
// applied and the first transient error, if any; on error the caller should
// retry the same window.
func SyncPayouts(ctx context.Context, source StatusChangeSource, applier StatusApplier, since time.Time) (int, error) {
	changes, err := source.GetStatusChanges(ctx, since)
	if err != nil {
		return 0, err
	}

	applied := 0
	var firstErr error
	for _, ch := range changes {
		_, err := applier.SetStatus(ctx, ch.WithdrawalID, ch.Status)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrWithdrawalNotFound):
			slog.Warn("skipping payout status change",
				"withdrawal_id", ch.WithdrawalID,
				"status", ch.Status,
				"error", err,
			)
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("apply status for %s: %w", ch.WithdrawalID, err)
			}
		}
	}
	return applied, firstErr
}

// PollPayouts runs SyncPayouts every interval until ctx ends.
func PollPayouts(ctx context.Context, source StatusChangeSource, applier StatusApplier, interval time.Duration) {
	slog.Info("starting payout status polling", "interval", interval.String())
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("payout status polling stopped")
			return
		case <-ticker.C:
			pollTime := time.Now().UTC()
			applied, err := SyncPayouts(ctx, source, applier, lastSyncTime)
			if err != nil {
				// keep lastSyncTime so the same window is retried next tick
				slog.Error("payout status sync failed", "since", lastSyncTime, "applied", applied, "error", err)
				continue
			}
			lastSyncTime = pollTime
			if applied > 0 {
				slog.Info("payout statuses applied", "count", applied)
			}
		}
	}
}
