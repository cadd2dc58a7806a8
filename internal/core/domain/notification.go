package domain

const (
	PayloadTypeJSON  = "json"
	PayloadTypeForm  = "x-www-form-urlencoded"
	PayloadTypeParam = "param"
)

// WebhookConfig describes where and how notifications are delivered. The
// payload is a free-form template; every string value containing $MSG has the
// rendered message substituted in before delivery.
type WebhookConfig struct {
	URL         string            `json:"url" yaml:"url" mapstructure:"url"`
	Method      string            `json:"method,omitempty" yaml:"method" mapstructure:"method"`
	PayloadType string            `json:"payload_type,omitempty" yaml:"payload_type" mapstructure:"payload_type"`
	Payload     map[string]any    `json:"payload,omitempty" yaml:"payload" mapstructure:"payload"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers" mapstructure:"headers"`
	TimeoutMs   int64             `json:"timeout_ms,omitempty" yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// NotificationConfig is the NOTIFICATION_CONFIG surface: delivery target,
// display timezone, default grace period and the monitors excluded from
// alerting altogether.
type NotificationConfig struct {
	Webhook                     *WebhookConfig `json:"webhook,omitempty" yaml:"webhook" mapstructure:"webhook"`
	Timezone                    string         `json:"timezone,omitempty" yaml:"timezone" mapstructure:"timezone"`
	GracePeriodMinutes          int            `json:"grace_period,omitempty" yaml:"grace_period" mapstructure:"grace_period"`
	SkipIDs                     []string       `json:"skip_ids,omitempty" yaml:"skip_ids" mapstructure:"skip_ids"`
	SkipErrorChangeNotification bool           `json:"skip_error_change_notification,omitempty" yaml:"skip_error_change_notification" mapstructure:"skip_error_change_notification"`
}

// ShouldSkip reports whether the monitor is on the notification skip list.
// Skipped monitors still update state and incidents; they just never alert.
func (c *NotificationConfig) ShouldSkip(monitorID string) bool {
	for _, id := range c.SkipIDs {
		if id == monitorID {
			return true
		}
	}
	return false
}

// GraceMinutesFor resolves the down-notification grace period for a monitor:
// the per-monitor override when set, else the global default.
func (c *NotificationConfig) GraceMinutesFor(m *Monitor) int {
	if m.Alerting != nil && m.Alerting.GraceDownMinutes > 0 {
		return m.Alerting.GraceDownMinutes
	}
	return c.GracePeriodMinutes
}

// SlowGraceMinutesFor resolves the slow-notification grace period.
func (c *NotificationConfig) SlowGraceMinutesFor(m *Monitor) int {
	if m.Alerting != nil && m.Alerting.GraceSlowMinutes > 0 {
		return m.Alerting.GraceSlowMinutes
	}
	return c.GracePeriodMinutes
}
