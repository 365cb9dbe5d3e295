package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reelworks/reel-agent/internal/platform"
	"github.com/reelworks/reel-agent/internal/reel"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/activity", activityHandler(cfg))

		r.Route("/reels/{id}", func(r chi.Router) {
			r.Post("/open", openSessionHandler(cfg))
			r.Delete("/session", closeSessionHandler(cfg))
			r.Get("/", getSessionHandler(cfg))

			r.Put("/metadata", commitMetadataHandler(cfg))
			r.Post("/metadata/draft", beginDraftHandler(cfg))
			r.Put("/metadata/draft", updateDraftHandler(cfg))
			r.Post("/metadata/draft/commit", commitDraftHandler(cfg))
			r.Delete("/metadata/draft", discardDraftHandler(cfg))

			r.Get("/versions", listVersionsHandler(cfg))
			r.Post("/versions/{versionId}/rollback", rollbackHandler(cfg))

			r.Get("/transcript", getTranscriptHandler(cfg))
			r.Post("/transcript/edit", beginTranscriptEditHandler(cfg))
			r.Put("/transcript/segments/{segmentId}", editSegmentHandler(cfg))
			r.Post("/transcript/save", saveTranscriptHandler(cfg))
			r.Post("/transcript/discard", discardTranscriptHandler(cfg))

			r.Post("/reprocess", startReprocessHandler(cfg))
			r.Get("/reprocess", reprocessStatusHandler(cfg))
			r.Delete("/reprocess", cancelReprocessHandler(cfg))
			r.Post("/reprocess/ack", acknowledgeReprocessHandler(cfg))

			r.Put("/permissions", updatePermissionsHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		running := cfg.Manager.ActiveReprocessCount()
		state := "idle"
		if running > 0 {
			state = "reprocessing"
		}
		WriteJSON(w, http.StatusOK, StatusResponse{
			State:            state,
			SessionsOpen:     cfg.Manager.Count(),
			ReprocessRunning: running,
		})
	}
}

func activityHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed < 1 {
				WriteError(w, http.StatusBadRequest, "invalid limit", "BAD_REQUEST")
				return
			}
			limit = parsed
		}

		entries, err := cfg.Repository.ListEntries(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list activity", "INTERNAL_ERROR")
			return
		}

		resp := ActivityResponse{Entries: make([]ActivityEntryResponse, len(entries))}
		for i, e := range entries {
			resp.Entries[i] = EntryToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, err := cfg.Manager.Open(r.Context(), id)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(session))
	}
}

func closeSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Manager.Close(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(session))
	}
}

func commitMetadataHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var req CommitMetadataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		updated, err := session.CommitMetadata(r.Context(), req.MetadataDelta)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func beginDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		draft, err := session.BeginMetadataDraft()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, draft)
	}
}

func updateDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var delta platform.MetadataDelta
		if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		draft, err := session.UpdateMetadataDraft(delta)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, draft)
	}
}

func commitDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var req DraftCommitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		updated, err := session.CommitMetadataDraft(r.Context(), req.ChangeLog)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func discardDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		session.DiscardMetadataDraft()
		w.WriteHeader(http.StatusNoContent)
	}
}

func listVersionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, session.Versions())
	}
}

func rollbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		updated, err := session.Rollback(r.Context(), chi.URLParam(r, "versionId"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func getTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		transcript := session.Transcript()
		if transcript == nil {
			WriteError(w, http.StatusNotFound, "transcript not loaded", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, transcript)
	}
}

func beginTranscriptEditHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		working, err := session.BeginTranscriptEdit()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, working)
	}
}

func editSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var req SegmentEditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := session.EditTranscriptSegment(chi.URLParam(r, "segmentId"), req.Text); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func saveTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		saved, err := session.SaveTranscript(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, saved)
	}
}

func discardTranscriptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		session.DiscardTranscriptEdit()
		w.WriteHeader(http.StatusNoContent)
	}
}

func startReprocessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		job, err := session.StartReprocess(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, ReprocessResponse{Job: job, Status: session.ReprocessStatus()})
	}
}

func reprocessStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, ReprocessResponse{Status: session.ReprocessStatus()})
	}
}

func cancelReprocessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := session.CancelReprocess(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func acknowledgeReprocessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := session.AcknowledgeReprocess(); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updatePermissionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var permissions platform.ReelPermissions
		if err := json.NewDecoder(r.Body).Decode(&permissions); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		updated, err := session.UpdatePermissions(r.Context(), permissions)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

// openSession resolves the session for the reel id in the URL. Session
// operations require an explicit open first.
func openSession(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*reel.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "reel id required", "BAD_REQUEST")
		return nil, false
	}
	session, ok := cfg.Manager.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "no open session for reel", "SESSION_NOT_OPEN")
		return nil, false
	}
	return session, true
}

func writeSessionError(w http.ResponseWriter, err error) {
	var apiErr *platform.APIError
	switch {
	case errors.Is(err, reel.ErrReprocessActive),
		errors.Is(err, reel.ErrMutationInFlight):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, reel.ErrNoActiveJob),
		errors.Is(err, reel.ErrNotTerminal),
		errors.Is(err, reel.ErrNotEditing),
		errors.Is(err, reel.ErrNoMetadataDraft),
		errors.Is(err, reel.ErrNotLoaded):
		WriteError(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	case errors.Is(err, reel.ErrSegmentNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, err.Error(), "PLATFORM_ERROR")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
