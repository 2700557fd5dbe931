package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/openclaw/dial-agent-go/internal/httputil"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/model"
)

type RecordingService interface {
	Stats(ctx context.Context) model.RecordingStats
	Cleanup(ctx context.Context, retention time.Duration) model.CleanupResult
	RecordingEnabled() bool
}

type RecordingEnabler interface {
	TryEnableRecording(ctx context.Context) bool
}

type RecordingHandler struct {
	recordings RecordingService
	enabler    RecordingEnabler
	retention  time.Duration
}

func NewRecordingHandler(recordings RecordingService, enabler RecordingEnabler, retention time.Duration) *RecordingHandler {
	return &RecordingHandler{recordings: recordings, enabler: enabler, retention: retention}
}

func (h *RecordingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.recordings.RecordingEnabled(),
		"stats":   h.recordings.Stats(r.Context()),
	})
}

type cleanupRequest struct {
	RetentionDays *int `json:"retentionDays"`
}

// Cleanup deletes old recordings now. The body may override the retention in days.
func (h *RecordingHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	retention := h.retention

	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.RetentionDays != nil {
		if *req.RetentionDays < 0 {
			httputil.WriteError(w, apperrors.InvalidInput("retentionDays", "must not be negative"))
			return
		}
		retention = time.Duration(*req.RetentionDays) * 24 * time.Hour
	}

	writeJSON(w, http.StatusOK, h.recordings.Cleanup(r.Context(), retention))
}

// Enable opens the platform screen for switching on call recording.
func (h *RecordingHandler) Enable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"attempted": h.enabler.TryEnableRecording(r.Context()),
	})
}
