package audit

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/util"
)

type EventType string

const (
	EventDialAccepted       EventType = "dial_accepted"
	EventDialRejected       EventType = "dial_rejected"
	EventDialCancelled      EventType = "dial_cancelled"
	EventCallEnded          EventType = "call_ended"
	EventRecordingUploaded  EventType = "recording_uploaded"
	EventDeviceUnbound      EventType = "device_unbound"
	EventControlAuthFailure EventType = "control_auth_failure"
)

type Event struct {
	Type      EventType
	CallID    string
	Phone     string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Log writes event to the audit trail. Phone numbers are masked.
func Log(event Event) {
	logger := log.With().
		Str("audit", "call").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.CallID != "" {
		logger = logger.With().Str("call_id", event.CallID).Logger()
	}
	if event.Phone != "" {
		logger = logger.With().Str("phone", util.MaskPhone(event.Phone)).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	event.UserAgent = r.UserAgent()
	Log(event)
}
