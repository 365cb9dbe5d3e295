// Package notify is the seam to notification presentation, which is an
// external collaborator. Every write-triggering action surfaces exactly
// one success or failure notification through a Notifier.
package notify

import (
	"context"
	"log/slog"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification is one user-visible outcome message.
type Notification struct {
	ReelID  string
	Level   string
	Message string
}

// Notifier presents notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier presents notifications as structured log lines. It is the
// fallback when no journal is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) {
	if notification.Level == LevelError {
		n.logger.Error("notification", "reel_id", notification.ReelID, "message", notification.Message)
		return
	}
	n.logger.Info("notification", "reel_id", notification.ReelID, "message", notification.Message)
}
