package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/httputil"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/wsclient"
)

type ConnectionStatus interface {
	State() wsclient.State
	Attempts() int
}

type CallStatus interface {
	Current() *model.CallSession
	CurrentDuration() int
}

type LastCallStore interface {
	LastEndedCall(ctx context.Context) (*model.EndedCall, error)
}

type StatusHandler struct {
	conn      ConnectionStatus
	calls     CallStatus
	lastCalls LastCallStore
	deviceID  string
	version   string
	startTime time.Time
}

func NewStatusHandler(conn ConnectionStatus, calls CallStatus, lastCalls LastCallStore, deviceID, version string) *StatusHandler {
	return &StatusHandler{
		conn:      conn,
		calls:     calls,
		lastCalls: lastCalls,
		deviceID:  deviceID,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the connection state and the active call, if any.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	var call any
	if s := h.calls.Current(); s != nil {
		call = map[string]any{
			"callId":       s.CallID,
			"phoneNumber":  s.PhoneNumber,
			"customerName": s.CustomerName,
			"customerId":   s.CustomerID,
			"state":        s.State,
			"startTime":    formatTime(s.StartTime),
			"connectTime":  formatTime(s.ConnectTime),
			"duration":     h.calls.CurrentDuration(),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId":          h.deviceID,
		"version":           h.version,
		"uptimeSeconds":     int(time.Since(h.startTime).Seconds()),
		"connection":        h.conn.State().String(),
		"reconnectAttempts": h.conn.Attempts(),
		"activeCall":        call,
	})
}

// LastCall returns the most recently finished call for the follow-up step.
func (h *StatusHandler) LastCall(w http.ResponseWriter, r *http.Request) {
	ended, err := h.lastCalls.LastEndedCall(r.Context())
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("failed to load last call")
		httputil.WriteError(w, err)
		return
	}
	if ended == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No finished call"})
		return
	}
	writeJSON(w, http.StatusOK, ended)
}
