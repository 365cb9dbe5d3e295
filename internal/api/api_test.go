package api

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/reelworks/reel-agent/internal/journal"
	"github.com/reelworks/reel-agent/internal/notify"
	"github.com/reelworks/reel-agent/internal/platform"
	"github.com/reelworks/reel-agent/internal/reel"
)

const testToken = "test-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memRepo is an in-memory journal.Repository for handler tests.
type memRepo struct {
	mu      sync.Mutex
	entries []*journal.Entry
	config  map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{config: map[string]string{journal.ConfigKeyAuthToken: testToken}}
}

func (r *memRepo) CreateEntry(ctx context.Context, e *journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRepo) ListEntries(ctx context.Context, limit int) ([]*journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*journal.Entry, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) GetConfig(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config[key], nil
}

func (r *memRepo) SetConfig(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config[key] = value
	return nil
}

// stubClient serves canned platform data for one reel.
type stubClient struct{}

func (stubClient) GetReel(ctx context.Context, id string) (*platform.ReelMetadata, error) {
	return &platform.ReelMetadata{
		ID: id, Title: "Facing pass", CurrentVersion: 3,
		Permissions: platform.ReelPermissions{Visibility: platform.VisibilityTenant, AccessLevel: platform.AccessEdit},
	}, nil
}

func (stubClient) UpdateMetadata(ctx context.Context, id string, delta platform.MetadataDelta) (*platform.ReelMetadata, error) {
	updated := &platform.ReelMetadata{ID: id, Title: "Facing pass", CurrentVersion: 4}
	if delta.Title != nil {
		updated.Title = *delta.Title
	}
	return updated, nil
}

func (stubClient) GetVersions(ctx context.Context, id string) ([]*platform.ReelVersion, error) {
	return []*platform.ReelVersion{
		{ID: "v3", VideoID: id, VersionNumber: 3},
		{ID: "v2", VideoID: id, VersionNumber: 2},
		{ID: "v1", VideoID: id, VersionNumber: 1},
	}, nil
}

func (stubClient) RollbackVersion(ctx context.Context, id, versionID string) (*platform.ReelMetadata, error) {
	return &platform.ReelMetadata{ID: id, Title: "restored", CurrentVersion: 4}, nil
}

func (stubClient) GetTranscript(ctx context.Context, id string) (*platform.Transcript, error) {
	return &platform.Transcript{
		ID: "t1", VideoID: id, Version: 2,
		Segments: []platform.TranscriptSegment{
			{ID: "s1", StartTime: 0, EndTime: 2, Text: "hello"},
		},
	}, nil
}

func (stubClient) UpdateTranscript(ctx context.Context, id string, t *platform.Transcript) (*platform.Transcript, error) {
	saved := *t
	saved.Version = t.Version + 1
	return &saved, nil
}

func (stubClient) StartReprocess(ctx context.Context, id string) (*platform.ReprocessJob, error) {
	return &platform.ReprocessJob{ID: "job1", Status: platform.JobStatusPending}, nil
}

func (stubClient) GetReprocessStatus(ctx context.Context, id, jobID string) (*platform.ReprocessJob, error) {
	return &platform.ReprocessJob{ID: jobID, Status: platform.JobStatusProcessing, Progress: 10}, nil
}

func (stubClient) CancelReprocess(ctx context.Context, id, jobID string) error {
	return nil
}

func (stubClient) UpdatePermissions(ctx context.Context, id string, p platform.ReelPermissions) (*platform.ReelMetadata, error) {
	return &platform.ReelMetadata{ID: id, CurrentVersion: 3, Permissions: p}, nil
}

func testServerConfig(t *testing.T, repo journal.Repository) ServerConfig {
	t.Helper()
	logger := testLogger()
	manager := reel.NewManager(
		stubClient{},
		reel.NewReadCache(time.Minute),
		reel.NewPoller(10*time.Millisecond, time.Second, logger),
		notify.NewLogNotifier(logger),
		logger,
	)
	t.Cleanup(manager.CloseAll)
	return ServerConfig{
		Port:       0,
		Manager:    manager,
		Repository: repo,
		Logger:     logger,
		StartTime:  time.Now(),
		DeviceID:   "dev1",
		Version:    "test",
	}
}
