package logger

import (
	"log/slog"

	"github.com/lookout-monitor/lookout/internal/core/domain"
	"github.com/lookout-monitor/lookout/internal/util"
	"github.com/lookout-monitor/lookout/theme"
)

// LogContext splits a log call into the terse line shown on the terminal and
// the detailed attrs that only reach the log file.
type LogContext struct {
	UserArgs     []any
	DetailedArgs []any
}

// StyledLogger is the application-facing logging surface. The pretty variant
// colours monitor names, counts and statuses with the active theme; the plain
// variant emits the same text without escapes for non-TTY output.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithMonitor(msg string, monitor string, args ...any)
	WarnWithMonitor(msg string, monitor string, args ...any)
	ErrorWithMonitor(msg string, monitor string, args ...any)
	InfoWithNumbers(msg string, numbers ...int64)
	InfoMonitorStatus(msg string, name string, status domain.MonitorStatus, args ...any)
	InfoConfigChange(oldName, newName string)

	InfoWithContext(msg string, monitor string, ctx LogContext)
	WarnWithContext(msg string, monitor string, ctx LogContext)
	ErrorWithContext(msg string, monitor string, ctx LogContext)

	With(args ...any) StyledLogger
	WithAttrs(attrs ...slog.Attr) StyledLogger
	WithRegion(region string) StyledLogger
	GetUnderlying() *slog.Logger
}

// NewStyledLogger picks the pretty or plain implementation to match the
// terminal handler New selected.
func NewStyledLogger(logger *slog.Logger, appTheme *theme.Theme) StyledLogger {
	if util.ShouldUseColors() {
		return NewPrettyStyledLogger(logger, appTheme)
	}
	return NewPlainStyledLogger(logger)
}

// NewWithTheme builds the slog logger and its styled wrapper in one call.
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	appTheme := theme.GetTheme(cfg.Theme)
	return logger, NewStyledLogger(logger, appTheme), cleanup, nil
}

func toInterfaceSlice(strings []string) []interface{} {
	result := make([]interface{}, len(strings))
	for i, s := range strings {
		result[i] = s
	}
	return result
}
