// Package reel implements the reel lifecycle core: job status polling,
// the reprocess controller, version history with rollback, the transcript
// editor, and the per-reel session that coordinates them.
package reel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reelworks/reel-agent/internal/notify"
	"github.com/reelworks/reel-agent/internal/platform"
)

// InvalidateReason identifies why open edit surfaces are being discarded.
type InvalidateReason string

// InvalidateRollback is broadcast when a rollback completes: any state
// derived from the previous current version is stale.
const InvalidateRollback InvalidateReason = "rollback"

var (
	// ErrMutationInFlight is returned when a mutation of the same kind
	// is already outstanding for this session. Different mutation kinds
	// may run concurrently.
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrNoMetadataDraft is returned when a draft operation runs with no
	// draft in progress.
	ErrNoMetadataDraft = errors.New("no metadata draft in progress")

	// ErrNotLoaded is returned when the session has not fetched its reel
	// yet.
	ErrNotLoaded = errors.New("session not loaded")
)

// MetadataDraft is the working copy of a metadata edit. Like the
// transcript working copy it diverges from the committed snapshot until
// committed or discarded, and a rollback invalidates it.
type MetadataDraft struct {
	BaseVersion int                    `json:"base_version"`
	Delta       platform.MetadataDelta `json:"delta"`
}

// Session coordinates one reel's lifecycle: metadata editing, version
// history with rollback, transcript editing, and reprocessing. The
// current metadata/version pair is only ever replaced here, atomically,
// from a confirmed platform response; every other component treats it as
// read-only input.
type Session struct {
	reelID    string
	client    platform.Client
	cache     *ReadCache
	notifier  notify.Notifier
	logger    *slog.Logger
	reprocess *ReprocessController

	// ctx bounds the session lifetime; Close cancels it, which also
	// stops any active polling subscription.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	reel      *platform.ReelMetadata
	history   *History
	editor    *TranscriptEditor
	draft     *MetadataDraft
	listeners []func(InvalidateReason)

	commitInFlight      bool
	rollbackInFlight    bool
	saveInFlight        bool
	permissionsInFlight bool
}

func NewSession(reelID string, client platform.Client, cache *ReadCache, poller *Poller, notifier notify.Notifier, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		reelID:   reelID,
		client:   client,
		cache:    cache,
		notifier: notifier,
		logger:   logger.With("reel_id", reelID),
		ctx:      ctx,
		cancel:   cancel,
		history:  NewHistory(),
		editor:   NewTranscriptEditor(nil),
	}

	s.reprocess = NewReprocessController(reelID, client, poller, ReprocessHooks{
		OnCompleted: s.onReprocessCompleted,
		OnFailed:    s.onReprocessFailed,
		OnError:     s.onReprocessError,
	}, s.logger)

	// The metadata draft and the transcript editor are edit surfaces
	// like any other: they comply with rollback invalidation through
	// the same listener mechanism a later surface would use.
	s.listeners = append(s.listeners,
		func(InvalidateReason) { s.draft = nil },
		func(InvalidateReason) { s.editor.Discard() },
	)

	return s
}

// ReelID returns the session's reel identifier.
func (s *Session) ReelID() string {
	return s.reelID
}

// OnInvalidate registers a listener for invalidation broadcasts.
// Listeners run with the session lock held and must not call back into
// the session synchronously.
func (s *Session) OnInvalidate(fn func(InvalidateReason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load fetches the reel, its version history, and its transcript as three
// independent cacheable reads. Each read is independently retryable by
// calling Load again; reads that succeeded are served from cache.
func (s *Session) Load(ctx context.Context) error {
	var (
		reel       *platform.ReelMetadata
		versions   []*platform.ReelVersion
		transcript *platform.Transcript
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reel, err = s.fetchReel(gctx)
		return err
	})
	g.Go(func() (err error) {
		versions, err = s.fetchVersions(gctx)
		return err
	})
	g.Go(func() (err error) {
		transcript, err = s.fetchTranscript(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load reel %s: %w", s.reelID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reel = reel
	if err := s.history.Replace(versions); err != nil {
		return fmt.Errorf("load reel %s: %w", s.reelID, err)
	}
	s.editor.Reset(transcript)
	return nil
}

func (s *Session) fetchReel(ctx context.Context) (*platform.ReelMetadata, error) {
	if reel, ok := s.cache.GetReel(s.reelID); ok {
		return reel, nil
	}
	reel, err := s.client.GetReel(ctx, s.reelID)
	if err != nil {
		return nil, err
	}
	s.cache.SetReel(s.reelID, reel)
	return reel, nil
}

func (s *Session) fetchVersions(ctx context.Context) ([]*platform.ReelVersion, error) {
	if versions, ok := s.cache.GetVersions(s.reelID); ok {
		return versions, nil
	}
	versions, err := s.client.GetVersions(ctx, s.reelID)
	if err != nil {
		return nil, err
	}
	s.cache.SetVersions(s.reelID, versions)
	return versions, nil
}

func (s *Session) fetchTranscript(ctx context.Context) (*platform.Transcript, error) {
	if transcript, ok := s.cache.GetTranscript(s.reelID); ok {
		return transcript, nil
	}
	transcript, err := s.client.GetTranscript(ctx, s.reelID)
	if err != nil {
		return nil, err
	}
	s.cache.SetTranscript(s.reelID, transcript)
	return transcript, nil
}

// Reel returns the current metadata snapshot. Callers treat it as
// read-only input and re-derive working state when it changes.
func (s *Session) Reel() *platform.ReelMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reel
}

// Versions returns the version history, newest first.
func (s *Session) Versions() []*platform.ReelVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.List()
}

// Transcript returns the last-committed transcript.
func (s *Session) Transcript() *platform.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Committed()
}

// TranscriptEditing reports whether a transcript working copy exists.
func (s *Session) TranscriptEditing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Editing()
}

func (s *Session) acquire(flag *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *flag {
		return ErrMutationInFlight
	}
	*flag = true
	return nil
}

func (s *Session) release(flag *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*flag = false
}

// CommitMetadata submits a partial metadata update. The platform assigns
// the new version number; the local snapshot is only replaced, in a
// single state update, once the response confirms success.
func (s *Session) CommitMetadata(ctx context.Context, delta platform.MetadataDelta) (*platform.ReelMetadata, error) {
	if err := s.acquire(&s.commitInFlight); err != nil {
		return nil, err
	}
	defer s.release(&s.commitInFlight)

	updated, err := s.client.UpdateMetadata(ctx, s.reelID, delta)
	if err != nil {
		s.notifier.Notify(ctx, notify.Notification{
			ReelID: s.reelID, Level: notify.LevelError,
			Message: fmt.Sprintf("Failed to save metadata: %v", err),
		})
		return nil, fmt.Errorf("commit metadata: %w", err)
	}

	versions, verr := s.client.GetVersions(ctx, s.reelID)

	s.mu.Lock()
	s.reel = updated
	s.draft = nil
	if verr == nil {
		if herr := s.history.Replace(versions); herr != nil {
			s.logger.Warn("rejecting inconsistent version list", "error", herr)
			verr = herr
		}
	}
	s.mu.Unlock()

	s.cache.SetReel(s.reelID, updated)
	if verr == nil {
		s.cache.SetVersions(s.reelID, versions)
	} else {
		s.cache.InvalidateVersions(s.reelID)
		s.logger.Warn("version history refresh failed", "error", verr)
	}

	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: fmt.Sprintf("Metadata saved as version %d", updated.CurrentVersion),
	})
	return updated, nil
}

// Rollback restores an earlier version's metadata snapshot by creating a
// new version. Existing history entries are never removed or reordered.
// On success every open edit surface is invalidated: the restored
// snapshot supersedes whatever they were derived from.
func (s *Session) Rollback(ctx context.Context, versionID string) (*platform.ReelMetadata, error) {
	if err := s.acquire(&s.rollbackInFlight); err != nil {
		return nil, err
	}
	defer s.release(&s.rollbackInFlight)

	updated, err := s.client.RollbackVersion(ctx, s.reelID, versionID)
	if err != nil {
		s.notifier.Notify(ctx, notify.Notification{
			ReelID: s.reelID, Level: notify.LevelError,
			Message: fmt.Sprintf("Rollback failed: %v", err),
		})
		return nil, fmt.Errorf("rollback to version %s: %w", versionID, err)
	}

	versions, verr := s.client.GetVersions(ctx, s.reelID)

	s.mu.Lock()
	s.reel = updated
	if verr == nil {
		if herr := s.history.Replace(versions); herr != nil {
			s.logger.Warn("rejecting inconsistent version list", "error", herr)
			verr = herr
		}
	}
	for _, fn := range s.listeners {
		fn(InvalidateRollback)
	}
	s.mu.Unlock()

	s.cache.SetReel(s.reelID, updated)
	if verr == nil {
		s.cache.SetVersions(s.reelID, versions)
	} else {
		s.cache.InvalidateVersions(s.reelID)
		s.logger.Warn("version history refresh failed", "error", verr)
	}

	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: fmt.Sprintf("Rolled back to version %d", updated.CurrentVersion),
	})
	return updated, nil
}

// BeginMetadataDraft starts a metadata working copy from the current
// snapshot.
func (s *Session) BeginMetadataDraft() (*MetadataDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reel == nil {
		return nil, ErrNotLoaded
	}
	s.draft = &MetadataDraft{BaseVersion: s.reel.CurrentVersion}
	return s.draft, nil
}

// UpdateMetadataDraft merges changed fields into the draft.
func (s *Session) UpdateMetadataDraft(delta platform.MetadataDelta) (*MetadataDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return nil, ErrNoMetadataDraft
	}
	mergeDelta(&s.draft.Delta, delta)
	return s.draft, nil
}

// Draft returns the metadata draft, if any.
func (s *Session) Draft() (*MetadataDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.draft != nil
}

// DiscardMetadataDraft drops the draft without a backend call.
func (s *Session) DiscardMetadataDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// CommitMetadataDraft commits the current draft with the given change log.
func (s *Session) CommitMetadataDraft(ctx context.Context, changeLog string) (*platform.ReelMetadata, error) {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return nil, ErrNoMetadataDraft
	}
	delta := s.draft.Delta
	delta.ChangeLog = changeLog
	s.mu.Unlock()

	return s.CommitMetadata(ctx, delta)
}

// BeginTranscriptEdit enters transcript edit mode with a fresh working
// copy of the committed transcript.
func (s *Session) BeginTranscriptEdit() (*platform.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.BeginEdit()
}

// EditTranscriptSegment replaces one segment's text in the working copy.
func (s *Session) EditTranscriptSegment(segmentID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.EditSegment(segmentID, text)
}

// DiscardTranscriptEdit drops the working copy, reverting to the
// committed transcript.
func (s *Session) DiscardTranscriptEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.Discard()
}

// SaveTranscript submits the full working segment sequence. On success
// the platform's confirmed copy becomes the committed transcript; its
// version counter is taken from the response, never bumped locally.
func (s *Session) SaveTranscript(ctx context.Context) (*platform.Transcript, error) {
	if err := s.acquire(&s.saveInFlight); err != nil {
		return nil, err
	}
	defer s.release(&s.saveInFlight)

	s.mu.Lock()
	working, err := s.editor.Working()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := ValidateSegments(working.Segments); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}
	submit := copyTranscript(working)
	s.mu.Unlock()

	saved, err := s.client.UpdateTranscript(ctx, s.reelID, submit)
	if err != nil {
		s.notifier.Notify(ctx, notify.Notification{
			ReelID: s.reelID, Level: notify.LevelError,
			Message: fmt.Sprintf("Failed to save transcript: %v", err),
		})
		return nil, fmt.Errorf("save transcript: %w", err)
	}

	s.mu.Lock()
	s.editor.Confirm(saved)
	s.mu.Unlock()
	s.cache.SetTranscript(s.reelID, saved)

	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: fmt.Sprintf("Transcript saved (version %d)", saved.Version),
	})
	return saved, nil
}

// UpdatePermissions replaces the reel's permission descriptor.
func (s *Session) UpdatePermissions(ctx context.Context, permissions platform.ReelPermissions) (*platform.ReelMetadata, error) {
	if err := s.acquire(&s.permissionsInFlight); err != nil {
		return nil, err
	}
	defer s.release(&s.permissionsInFlight)

	updated, err := s.client.UpdatePermissions(ctx, s.reelID, permissions)
	if err != nil {
		s.notifier.Notify(ctx, notify.Notification{
			ReelID: s.reelID, Level: notify.LevelError,
			Message: fmt.Sprintf("Failed to update permissions: %v", err),
		})
		return nil, fmt.Errorf("update permissions: %w", err)
	}

	s.mu.Lock()
	s.reel = updated
	s.mu.Unlock()
	s.cache.SetReel(s.reelID, updated)

	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: "Permissions updated",
	})
	return updated, nil
}

// StartReprocess starts a reprocessing job. Rejected locally, with no
// request issued, while a job is active or unacknowledged.
func (s *Session) StartReprocess(ctx context.Context) (*platform.ReprocessJob, error) {
	job, err := s.reprocess.Start(s.ctx)
	if err != nil {
		if !errors.Is(err, ErrReprocessActive) {
			s.notifier.Notify(ctx, notify.Notification{
				ReelID: s.reelID, Level: notify.LevelError,
				Message: fmt.Sprintf("Failed to start reprocessing: %v", err),
			})
		}
		return nil, err
	}
	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: "Reprocessing started",
	})
	return job, nil
}

// CancelReprocess stops tracking and best-effort cancels the remote job.
func (s *Session) CancelReprocess(ctx context.Context) error {
	if err := s.reprocess.Cancel(ctx); err != nil {
		return err
	}
	s.notifier.Notify(ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: "Reprocessing cancelled",
	})
	return nil
}

// AcknowledgeReprocess dismisses a terminal reprocessing result.
func (s *Session) AcknowledgeReprocess() error {
	return s.reprocess.Acknowledge()
}

// ReprocessStatus returns the reprocess controller snapshot.
func (s *Session) ReprocessStatus() ReprocessStatus {
	return s.reprocess.Status()
}

// onReprocessCompleted runs exactly once per completed job: the reel's
// media-derived data is stale, so the affected reads are dropped and
// refreshed from the platform.
func (s *Session) onReprocessCompleted() {
	s.cache.InvalidateReel(s.reelID)
	s.cache.InvalidateVersions(s.reelID)

	reel, rerr := s.client.GetReel(s.ctx, s.reelID)
	versions, verr := s.client.GetVersions(s.ctx, s.reelID)

	s.mu.Lock()
	if rerr == nil {
		s.reel = reel
	}
	if verr == nil {
		if herr := s.history.Replace(versions); herr != nil {
			verr = herr
		}
	}
	s.mu.Unlock()

	if rerr == nil {
		s.cache.SetReel(s.reelID, reel)
	} else {
		s.logger.Warn("reel refresh after reprocess failed", "error", rerr)
	}
	if verr == nil {
		s.cache.SetVersions(s.reelID, versions)
	} else {
		s.logger.Warn("version refresh after reprocess failed", "error", verr)
	}

	s.notifier.Notify(s.ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelSuccess,
		Message: "Reprocessing completed",
	})
}

func (s *Session) onReprocessFailed(message string) {
	if message == "" {
		message = "unknown error"
	}
	s.notifier.Notify(s.ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelError,
		Message: "Reprocessing failed: " + message,
	})
}

func (s *Session) onReprocessError(err error) {
	s.notifier.Notify(s.ctx, notify.Notification{
		ReelID: s.reelID, Level: notify.LevelError,
		Message: fmt.Sprintf("Lost track of reprocessing job: %v", err),
	})
}

// Close tears the session down, cancelling any active polling
// subscription.
func (s *Session) Close() {
	s.cancel()
	s.logger.Info("session closed")
}

func mergeDelta(dst *platform.MetadataDelta, src platform.MetadataDelta) {
	if src.Title != nil {
		dst.Title = src.Title
	}
	if src.Description != nil {
		dst.Description = src.Description
	}
	if src.Tags != nil {
		dst.Tags = src.Tags
	}
	if src.Category != nil {
		dst.Category = src.Category
	}
	if src.MachineModel != nil {
		dst.MachineModel = src.MachineModel
	}
	if src.Tooling != nil {
		dst.Tooling = src.Tooling
	}
	if src.ProcessStep != nil {
		dst.ProcessStep = src.ProcessStep
	}
	if src.SkillLevel != nil {
		dst.SkillLevel = src.SkillLevel
	}
	if src.Language != nil {
		dst.Language = src.Language
	}
	if src.CustomerScope != nil {
		dst.CustomerScope = src.CustomerScope
	}
}
