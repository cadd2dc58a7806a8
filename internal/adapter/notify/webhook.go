// Package notify delivers aggregator-decided alerts to a configured webhook.
// Delivery is strictly best-effort: failures are logged, counted against a
// circuit breaker and otherwise swallowed, so a dead webhook can never stall
// an aggregation tick.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/core/ports"
	"github.com/lookout-monitor/lookout/internal/logger"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 60 * time.Second
)

// Webhook is the ports.Notifier implementation for HTTP webhooks.
type Webhook struct {
	cfg     domain.NotificationConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  logger.StyledLogger
}

var _ ports.Notifier = (*Webhook)(nil)

func NewWebhook(cfg domain.NotificationConfig, log logger.StyledLogger) *Webhook {
	timeout := constants.DefaultWebhookTimeout
	if cfg.Webhook != nil && cfg.Webhook.TimeoutMs > 0 {
		timeout = time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "webhook",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Webhook circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})

	return &Webhook{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  log,
	}
}

// Dispatch sends each event in order. Errors never propagate: a failed or
// breaker-rejected delivery is logged and the rest of the batch continues.
func (w *Webhook) Dispatch(ctx context.Context, events []domain.NotificationEvent) error {
	if w.cfg.Webhook == nil || w.cfg.Webhook.URL == "" {
		return nil
	}

	for _, event := range events {
		if err := w.deliver(ctx, event); err != nil {
			w.logger.ErrorWithMonitor("Notification delivery failed for", event.MonitorID,
				"kind", event.Kind,
				"event_id", event.EventID,
				"error", err)
			continue
		}
		w.logger.InfoWithMonitor("Notification delivered for", event.MonitorID,
			"kind", event.Kind,
			"event_id", event.EventID)
	}
	return nil
}

func (w *Webhook) deliver(ctx context.Context, event domain.NotificationEvent) error {
	rendered, err := render(w.cfg.Webhook, event.Message)
	if err != nil {
		return err
	}

	_, err = w.breaker.Execute(func() (any, error) {
		return nil, w.send(ctx, rendered)
	})
	return err
}

func (w *Webhook) send(ctx context.Context, rendered renderedRequest) error {
	var body *bytes.Reader
	if len(rendered.Body) > 0 {
		body = bytes.NewReader(rendered.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, rendered.Method, rendered.URL, body)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	if rendered.ContentType != "" {
		req.Header.Set(constants.ContentTypeHeader, rendered.ContentType)
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)
	for key, value := range w.cfg.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
