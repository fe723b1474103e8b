// Package notification delivers capital-guard alerts to external channels
// (Telegram, webhooks, the log).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"confluence-engine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	TS      time.Time         `json:"ts"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// CapitalAlert builds the alert for a guard transition. Only entries into
// Warning and EmergencyShutdown alert; every other transition returns false.
func CapitalAlert(from, to model.CapitalState, st model.CapitalStatus) (Alert, bool) {
	var level AlertLevel
	var title string
	switch to {
	case model.StateWarning:
		level, title = AlertWarning, "Capital guard warning"
	case model.StateEmergencyShutdown:
		level, title = AlertCritical, "Capital guard emergency shutdown"
	default:
		return Alert{}, false
	}
	return Alert{
		Level: level,
		Title: title,
		Message: fmt.Sprintf("capital in play %.1f%% of balance %.2f (committed %.2f, free %.2f); state %s -> %s",
			st.InPlayPct, st.Balance, st.Committed, st.FreeMargin, from, to),
		Fields: map[string]string{
			"from":        string(from),
			"to":          string(to),
			"in_play_pct": fmt.Sprintf("%.2f", st.InPlayPct),
			"positions":   fmt.Sprintf("%d", len(st.Positions)),
		},
		TS: st.TS,
	}, true
}

// LogNotifier logs alerts (useful for development and as a fallback channel).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		level = slog.LevelWarn
	case AlertCritical:
		level = slog.LevelError
	}
	n.log.Log(ctx, level, "[notify] "+alert.Title, "level", alert.Level, "message", alert.Message)
	return nil
}

// Multi sends every alert to all backends and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
