package reel

import (
	"errors"
	"fmt"

	"github.com/reelworks/reel-agent/internal/platform"
)

var (
	// ErrNotEditing is returned when a working-copy operation runs in
	// view mode.
	ErrNotEditing = errors.New("transcript is not in edit mode")

	// ErrSegmentNotFound is returned when an edit names an unknown
	// segment id.
	ErrSegmentNotFound = errors.New("transcript segment not found")
)

// TranscriptEditor holds the two-slot transcript state: the committed
// copy and an optional working copy. The editor is binary: view mode
// (working == nil) or edit mode. The working copy is a structural copy;
// mutating it never touches the committed transcript. Discard is a no-op
// on committed state.
type TranscriptEditor struct {
	committed *platform.Transcript
	working   *platform.Transcript
	index     map[string]int
}

func NewTranscriptEditor(committed *platform.Transcript) *TranscriptEditor {
	return &TranscriptEditor{committed: committed}
}

// Committed returns the last-committed transcript.
func (e *TranscriptEditor) Committed() *platform.Transcript {
	return e.committed
}

// Editing reports whether a working copy exists.
func (e *TranscriptEditor) Editing() bool {
	return e.working != nil
}

// Reset replaces the committed transcript and drops any working copy.
// Used when a refresh or rollback makes the current edit session stale.
func (e *TranscriptEditor) Reset(committed *platform.Transcript) {
	e.committed = committed
	e.working = nil
	e.index = nil
}

// BeginEdit enters edit mode with a fresh structural copy of the current
// committed transcript. A leftover working copy from a previous session
// is never reused.
func (e *TranscriptEditor) BeginEdit() (*platform.Transcript, error) {
	if e.committed == nil {
		return nil, errors.New("no transcript loaded")
	}
	e.working = copyTranscript(e.committed)
	e.index = make(map[string]int, len(e.working.Segments))
	for i, seg := range e.working.Segments {
		e.index[seg.ID] = i
	}
	return e.working, nil
}

// EditSegment replaces the text of one segment in the working copy.
// Timing fields, ordering, and confidence are preserved; only text is
// mutable. Lookup is constant time.
func (e *TranscriptEditor) EditSegment(segmentID, text string) error {
	if e.working == nil {
		return ErrNotEditing
	}
	i, ok := e.index[segmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSegmentNotFound, segmentID)
	}
	e.working.Segments[i].Text = text
	return nil
}

// Working returns the working copy for submission.
func (e *TranscriptEditor) Working() (*platform.Transcript, error) {
	if e.working == nil {
		return nil, ErrNotEditing
	}
	return e.working, nil
}

// Confirm applies the server's saved copy as the new committed transcript
// and leaves edit mode. The server is authoritative for the version
// counter; the client never bumps it speculatively.
func (e *TranscriptEditor) Confirm(saved *platform.Transcript) {
	e.committed = saved
	e.working = nil
	e.index = nil
}

// Discard drops the working copy and returns to view mode. No backend
// call is made and the committed transcript is untouched.
func (e *TranscriptEditor) Discard() {
	e.working = nil
	e.index = nil
}

func copyTranscript(t *platform.Transcript) *platform.Transcript {
	dup := *t
	dup.Segments = make([]platform.TranscriptSegment, len(t.Segments))
	copy(dup.Segments, t.Segments)
	return &dup
}

// ValidateSegments checks the transcript segment invariant: segments are
// ordered by start time, every segment spans 0 <= start < end, and no
// two segments overlap.
func ValidateSegments(segments []platform.TranscriptSegment) error {
	for i, seg := range segments {
		if seg.StartTime < 0 {
			return fmt.Errorf("segment %s: start time %v is negative", seg.ID, seg.StartTime)
		}
		if seg.StartTime >= seg.EndTime {
			return fmt.Errorf("segment %s: start time %v is not before end time %v", seg.ID, seg.StartTime, seg.EndTime)
		}
		if i > 0 && seg.StartTime < segments[i-1].EndTime {
			return fmt.Errorf("segment %s overlaps previous segment %s", seg.ID, segments[i-1].ID)
		}
	}
	return nil
}
