package ports

import (
	"context"

	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// Notifier delivers user-visible alerts. Implementations are best-effort:
// Dispatch logs failures and returns nil unless the configuration itself is
// unusable.
type Notifier interface {
	Dispatch(ctx context.Context, events []domain.NotificationEvent) error
}

// NoopNotifier drops every event; used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) Dispatch(ctx context.Context, events []domain.NotificationEvent) error {
	return nil
}
