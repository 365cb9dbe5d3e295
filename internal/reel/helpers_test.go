package reel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/reelworks/reel-agent/internal/notify"
	"github.com/reelworks/reel-agent/internal/platform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var errNotImplemented = errors.New("not implemented in fake")

// fakePlatform implements platform.Client with overridable behaviors.
// Unset operations fail, so tests only wire what they exercise.
type fakePlatform struct {
	getReel           func(ctx context.Context, id string) (*platform.ReelMetadata, error)
	updateMetadata    func(ctx context.Context, id string, delta platform.MetadataDelta) (*platform.ReelMetadata, error)
	getVersions       func(ctx context.Context, id string) ([]*platform.ReelVersion, error)
	rollbackVersion   func(ctx context.Context, id, versionID string) (*platform.ReelMetadata, error)
	getTranscript     func(ctx context.Context, id string) (*platform.Transcript, error)
	updateTranscript  func(ctx context.Context, id string, t *platform.Transcript) (*platform.Transcript, error)
	startReprocess    func(ctx context.Context, id string) (*platform.ReprocessJob, error)
	getReprocess      func(ctx context.Context, id, jobID string) (*platform.ReprocessJob, error)
	cancelReprocess   func(ctx context.Context, id, jobID string) error
	updatePermissions func(ctx context.Context, id string, p platform.ReelPermissions) (*platform.ReelMetadata, error)
}

func (f *fakePlatform) GetReel(ctx context.Context, id string) (*platform.ReelMetadata, error) {
	if f.getReel == nil {
		return nil, errNotImplemented
	}
	return f.getReel(ctx, id)
}

func (f *fakePlatform) UpdateMetadata(ctx context.Context, id string, delta platform.MetadataDelta) (*platform.ReelMetadata, error) {
	if f.updateMetadata == nil {
		return nil, errNotImplemented
	}
	return f.updateMetadata(ctx, id, delta)
}

func (f *fakePlatform) GetVersions(ctx context.Context, id string) ([]*platform.ReelVersion, error) {
	if f.getVersions == nil {
		return nil, errNotImplemented
	}
	return f.getVersions(ctx, id)
}

func (f *fakePlatform) RollbackVersion(ctx context.Context, id, versionID string) (*platform.ReelMetadata, error) {
	if f.rollbackVersion == nil {
		return nil, errNotImplemented
	}
	return f.rollbackVersion(ctx, id, versionID)
}

func (f *fakePlatform) GetTranscript(ctx context.Context, id string) (*platform.Transcript, error) {
	if f.getTranscript == nil {
		return nil, errNotImplemented
	}
	return f.getTranscript(ctx, id)
}

func (f *fakePlatform) UpdateTranscript(ctx context.Context, id string, t *platform.Transcript) (*platform.Transcript, error) {
	if f.updateTranscript == nil {
		return nil, errNotImplemented
	}
	return f.updateTranscript(ctx, id, t)
}

func (f *fakePlatform) StartReprocess(ctx context.Context, id string) (*platform.ReprocessJob, error) {
	if f.startReprocess == nil {
		return nil, errNotImplemented
	}
	return f.startReprocess(ctx, id)
}

func (f *fakePlatform) GetReprocessStatus(ctx context.Context, id, jobID string) (*platform.ReprocessJob, error) {
	if f.getReprocess == nil {
		return nil, errNotImplemented
	}
	return f.getReprocess(ctx, id, jobID)
}

func (f *fakePlatform) CancelReprocess(ctx context.Context, id, jobID string) error {
	if f.cancelReprocess == nil {
		return errNotImplemented
	}
	return f.cancelReprocess(ctx, id, jobID)
}

func (f *fakePlatform) UpdatePermissions(ctx context.Context, id string, p platform.ReelPermissions) (*platform.ReelMetadata, error) {
	if f.updatePermissions == nil {
		return nil, errNotImplemented
	}
	return f.updatePermissions(ctx, id, p)
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, notification notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) byLevel(level string) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Notification
	for _, notification := range n.notifications {
		if notification.Level == level {
			out = append(out, notification)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", d, msg)
}

func testReel(id string, version int, title string) *platform.ReelMetadata {
	return &platform.ReelMetadata{
		ID:             id,
		Title:          title,
		Tags:           []string{"milling"},
		Category:       "machining",
		SkillLevel:     "intermediate",
		Language:       "en",
		CurrentVersion: version,
		Permissions: platform.ReelPermissions{
			Visibility:  platform.VisibilityTenant,
			AccessLevel: platform.AccessEdit,
		},
	}
}

func testVersion(id, reelID string, number int, title string) *platform.ReelVersion {
	return &platform.ReelVersion{
		ID:            id,
		VideoID:       reelID,
		VersionNumber: number,
		ChangeLog:     "change " + id,
		Metadata:      *testReel(reelID, number, title),
	}
}

func testTranscript(reelID string, version int) *platform.Transcript {
	return &platform.Transcript{
		ID:      "t-" + reelID,
		VideoID: reelID,
		Version: version,
		Segments: []platform.TranscriptSegment{
			{ID: "s1", StartTime: 0, EndTime: 2.5, Text: "Mount the workpiece.", Confidence: 0.97},
			{ID: "s2", StartTime: 2.5, EndTime: 5, Text: "Zero the spindle.", Confidence: 0.91},
			{ID: "s3", StartTime: 5.5, EndTime: 9, Text: "Start the program.", Confidence: 0.88},
		},
	}
}
