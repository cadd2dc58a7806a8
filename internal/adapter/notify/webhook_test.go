package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/logger"
)

func newTestLogger() logger.StyledLogger {
	loggerCfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(loggerCfg)
	return logger.NewPlainStyledLogger(log)
}

func webhookConfig(url string) domain.NotificationConfig {
	return domain.NotificationConfig{
		Webhook: &domain.WebhookConfig{
			URL:         url,
			PayloadType: domain.PayloadTypeJSON,
			Payload:     map[string]any{"text": "$MSG"},
		},
	}
}

func TestDispatchDeliversEachEvent(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := NewWebhook(webhookConfig(server.URL), newTestLogger())
	events := []domain.NotificationEvent{
		domain.NewNotificationEvent(domain.NotificationDown, "api", "API", "🔴 API is down", 1000),
		domain.NewNotificationEvent(domain.NotificationUp, "api", "API", "✅ API is back up", 2000),
	}

	if err := w.Dispatch(context.Background(), events); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(bodies))
	}
	if bodies[0] != `{"text":"🔴 API is down"}` {
		t.Errorf("Unexpected first body: %s", bodies[0])
	}
}

func TestDispatchSwallowsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	w := NewWebhook(webhookConfig(server.URL), newTestLogger())
	events := []domain.NotificationEvent{
		domain.NewNotificationEvent(domain.NotificationDown, "api", "API", "down", 1000),
	}

	if err := w.Dispatch(context.Background(), events); err != nil {
		t.Fatalf("Dispatch must swallow delivery errors, got %v", err)
	}
}

func TestDispatchWithoutWebhookIsNoop(t *testing.T) {
	w := NewWebhook(domain.NotificationConfig{}, newTestLogger())
	events := []domain.NotificationEvent{
		domain.NewNotificationEvent(domain.NotificationDown, "api", "API", "down", 1000),
	}

	if err := w.Dispatch(context.Background(), events); err != nil {
		t.Fatalf("Dispatch without webhook must be a no-op, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	w := NewWebhook(webhookConfig(server.URL), newTestLogger())

	// Five failures trip the breaker; the remaining dispatches are rejected
	// without touching the network.
	for i := 0; i < 8; i++ {
		event := domain.NewNotificationEvent(domain.NotificationDown, "api", "API", "down", int64(i))
		if err := w.Dispatch(context.Background(), []domain.NotificationEvent{event}); err != nil {
			t.Fatalf("Dispatch must swallow breaker errors, got %v", err)
		}
	}

	if got := calls.Load(); got != breakerConsecutiveFailures {
		t.Errorf("Expected exactly %d upstream calls before the breaker opened, got %d",
			breakerConsecutiveFailures, got)
	}
}

func TestSendForwardsConfiguredHeaders(t *testing.T) {
	var auth, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := webhookConfig(server.URL)
	cfg.Webhook.Headers = map[string]string{"Authorization": "Bearer token123"}

	w := NewWebhook(cfg, newTestLogger())
	event := domain.NewNotificationEvent(domain.NotificationSlow, "api", "API", "slow", 1000)
	if err := w.Dispatch(context.Background(), []domain.NotificationEvent{event}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if auth != "Bearer token123" {
		t.Errorf("Expected configured header forwarded, got %q", auth)
	}
	if contentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", contentType)
	}
}
