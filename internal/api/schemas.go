package api

import (
	"time"

	"github.com/reelworks/reel-agent/internal/journal"
	"github.com/reelworks/reel-agent/internal/platform"
	"github.com/reelworks/reel-agent/internal/reel"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State            string `json:"state"`
	SessionsOpen     int    `json:"sessions_open"`
	ReprocessRunning int    `json:"reprocess_running"`
}

type SessionResponse struct {
	Reel              *platform.ReelMetadata `json:"reel"`
	Versions          []*platform.ReelVersion `json:"versions"`
	TranscriptVersion int                    `json:"transcript_version"`
	TranscriptEditing bool                   `json:"transcript_editing"`
	Reprocess         reel.ReprocessStatus   `json:"reprocess"`
}

type CommitMetadataRequest struct {
	platform.MetadataDelta
}

type DraftCommitRequest struct {
	ChangeLog string `json:"changeLog"`
}

type SegmentEditRequest struct {
	Text string `json:"text"`
}

type ReprocessResponse struct {
	Job    *platform.ReprocessJob `json:"job,omitempty"`
	Status reel.ReprocessStatus   `json:"status"`
}

type ActivityEntryResponse struct {
	ID        string `json:"id"`
	ReelID    string `json:"reel_id,omitempty"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

type ActivityResponse struct {
	Entries []ActivityEntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(s *reel.Session) SessionResponse {
	resp := SessionResponse{
		Reel:              s.Reel(),
		Versions:          s.Versions(),
		TranscriptEditing: s.TranscriptEditing(),
		Reprocess:         s.ReprocessStatus(),
	}
	if t := s.Transcript(); t != nil {
		resp.TranscriptVersion = t.Version
	}
	return resp
}

func EntryToResponse(e *journal.Entry) ActivityEntryResponse {
	return ActivityEntryResponse{
		ID:        e.ID,
		ReelID:    e.ReelID,
		Level:     e.Level,
		Message:   e.Message,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
