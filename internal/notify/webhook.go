package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"trailguard/internal/emergency/models"
)

// Webhook relays received emergencies to an HTTP endpoint, one POST per
// emergency. Delivery failures are logged and dropped; the ledger remains the
// source of truth.
type Webhook struct {
	Base
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(url string, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Kind      string           `json:"kind"`
	Emergency models.Emergency `json:"emergency"`
}

func (w *Webhook) EmergencyReceived(ctx context.Context, em models.Emergency) {
	body, err := json.Marshal(webhookPayload{Kind: "emergency_received", Emergency: em})
	if err != nil {
		w.logger.Warn("webhook encode failed", "emergency_id", em.ID.String(), "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("webhook request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("webhook delivery failed", "emergency_id", em.ID.String(), "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.logger.Warn("webhook rejected", "emergency_id", em.ID.String(), "status", resp.StatusCode)
	}
}
