// Package dispatch hands activated (clicked) events to whatever acts on them.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"planview/internal/config"
	appLog "planview/internal/log"
)

// Activation is one click on a placed event.
type Activation struct {
	DeliveryID  string    `json:"delivery_id"`
	PlacementID string    `json:"placement_id"`
	EventID     string    `json:"event_id"`
	Payload     any       `json:"payload"`
	At          time.Time `json:"at"`
}

// Dispatcher delivers activations.
type Dispatcher interface {
	Dispatch(ctx context.Context, a Activation) error
}

// New returns a webhook dispatcher when cfg names a URL, and a log-only one
// otherwise.
func New(cfg config.ActivationConfig) Dispatcher {
	if cfg.WebhookURL == "" {
		return LogDispatcher{}
	}
	return NewWebhook(cfg.WebhookURL, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

// Prepare fills in the delivery id and timestamp.
func Prepare(placementID, eventID string, payload any) Activation {
	return Activation{
		DeliveryID:  uuid.NewString(),
		PlacementID: placementID,
		EventID:     eventID,
		Payload:     payload,
		At:          time.Now().UTC(),
	}
}

// LogDispatcher only records the activation.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, a Activation) error {
	appLog.Info("event activated", "delivery", a.DeliveryID, "event_id", a.EventID, "placement", a.PlacementID)
	return nil
}

// Webhook posts activations as JSON.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *Webhook) Dispatch(ctx context.Context, a Activation) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode activation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Planview-Delivery", a.DeliveryID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("activation webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("activation webhook: unexpected status %s", resp.Status)
	}
	appLog.Info("activation delivered", "delivery", a.DeliveryID, "event_id", a.EventID, "status", resp.StatusCode)
	return nil
}
