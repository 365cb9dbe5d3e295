package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/reelworks/reel-agent/internal/journal"
)

// JournalNotifier presents notifications as log lines and records them in
// the activity journal so they are listable after the fact.
type JournalNotifier struct {
	repo   journal.Repository
	logger *slog.Logger
}

func NewJournalNotifier(repo journal.Repository, logger *slog.Logger) *JournalNotifier {
	return &JournalNotifier{repo: repo, logger: logger}
}

func (n *JournalNotifier) Notify(ctx context.Context, notification Notification) {
	if notification.Level == LevelError {
		n.logger.Error("notification", "reel_id", notification.ReelID, "message", notification.Message)
	} else {
		n.logger.Info("notification", "reel_id", notification.ReelID, "message", notification.Message)
	}

	entry := &journal.Entry{
		ID:        journal.NewID(),
		ReelID:    notification.ReelID,
		Level:     notification.Level,
		Message:   notification.Message,
		CreatedAt: time.Now(),
	}
	if err := n.repo.CreateEntry(ctx, entry); err != nil {
		n.logger.Warn("failed to record notification", "error", err)
	}
}
