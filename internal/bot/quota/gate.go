// Package quota enforces the advisory daily usage ceiling through a remote
// counter endpoint. The backend is best-effort: checks fail open and records
// fail silent, so reply delivery never depends on its availability.
package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eigo-sensei/server/internal/bot/model"
	logx "github.com/eigo-sensei/server/pkg/logger"
)

type Gate struct {
	url    string
	limit  int
	client *http.Client
	now    func() time.Time
}

func New(cfg model.QuotaConfig) *Gate {
	return &Gate{
		url:   cfg.URL,
		limit: cfg.DailyLimit,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		now: time.Now,
	}
}

type usagePayload struct {
	UserID    string `json:"user_id"`
	Date      string `json:"date"`
	Count     int    `json:"count,omitempty"`
	CheckOnly bool   `json:"check_only,omitempty"`
}

type usageResponse struct {
	Count int `json:"count"`
}

func (g *Gate) today() string {
	return g.now().Format("2006-01-02")
}

func (g *Gate) post(ctx context.Context, payload usagePayload) (*usageResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal usage payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build usage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("usage backend status %d", resp.StatusCode)
	}

	var out usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode usage response: %w", err)
	}
	return &out, nil
}

// IsOverLimit reports whether the user's recorded count for today has reached
// the daily ceiling. Any backend failure allows the request through.
func (g *Gate) IsOverLimit(ctx context.Context, userID string) bool {
	out, err := g.post(ctx, usagePayload{UserID: userID, Date: g.today(), CheckOnly: true})
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("quota check failed, allowing request")
		return false
	}
	return out.Count >= g.limit
}

// RecordUsage increments today's count for the user and reports whether the
// remote write is believed to have succeeded. Failures are logged only.
func (g *Gate) RecordUsage(ctx context.Context, userID string) bool {
	if _, err := g.post(ctx, usagePayload{UserID: userID, Date: g.today(), Count: 1}); err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("usage record failed")
		return false
	}
	return true
}

var _ model.QuotaGate = (*Gate)(nil)
