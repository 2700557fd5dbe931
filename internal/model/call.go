package model

import "time"

type CallState string

const (
	CallStateIdle    CallState = "idle"
	CallStateDialing CallState = "dialing"
	CallStateRinging CallState = "ringing"
	CallStateOffhook CallState = "offhook"
	CallStateEnded   CallState = "ended"
)

// rank orders states along the lifecycle; transitions never decrease it.
func (s CallState) rank() int {
	switch s {
	case CallStateDialing:
		return 1
	case CallStateRinging:
		return 2
	case CallStateOffhook:
		return 3
	case CallStateEnded:
		return 4
	default:
		return 0
	}
}

// Precedes reports whether moving from s to next goes forward in the lifecycle.
func (s CallState) Precedes(next CallState) bool {
	return s.rank() < next.rank()
}

// Status values reported outward for a call
const (
	CallStatusDialing   = "dialing"
	CallStatusRinging   = "ringing"
	CallStatusConnected = "connected"
	CallStatusMissed    = "missed"
	CallStatusRejected  = "rejected"
	CallStatusFailed    = "failed"
)

// EndStatus classifies a finished call by its connected duration.
func EndStatus(durationSeconds int) string {
	if durationSeconds > 0 {
		return CallStatusConnected
	}
	return CallStatusMissed
}

// TelephonyStatus is the raw value reported by the platform.
type TelephonyStatus int

const (
	TelephonyIdle    TelephonyStatus = 0
	TelephonyRinging TelephonyStatus = 1
	TelephonyOffhook TelephonyStatus = 2
)

func (s TelephonyStatus) String() string {
	switch s {
	case TelephonyIdle:
		return "idle"
	case TelephonyRinging:
		return "ringing"
	case TelephonyOffhook:
		return "offhook"
	default:
		return "unknown"
	}
}

const UnknownCustomer = "unknown customer"

// Customer identifies who is being called. Both fields are optional.
type Customer struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// CallSession is the single in-progress call.
type CallSession struct {
	CallID        string    `json:"callId"`
	PhoneNumber   string    `json:"phoneNumber"`
	CustomerName  string    `json:"customerName"`
	CustomerID    string    `json:"customerId,omitempty"`
	State         CallState `json:"state"`
	StartTime     time.Time `json:"startTime"`
	ConnectTime   time.Time `json:"connectTime,omitempty"`
	RecordingPath string    `json:"recordingPath,omitempty"`
}

func NewCallSession(req DialRequest, now time.Time) *CallSession {
	name := req.CustomerName
	if name == "" {
		name = UnknownCustomer
	}
	return &CallSession{
		CallID:       req.CallID,
		PhoneNumber:  req.PhoneNumber,
		CustomerName: name,
		CustomerID:   req.CustomerID,
		State:        CallStateDialing,
		StartTime:    now,
	}
}

// EndedCall is kept after a call finishes for the follow-up step.
type EndedCall struct {
	CallID       string    `json:"callId"`
	PhoneNumber  string    `json:"phoneNumber"`
	CustomerName string    `json:"customerName"`
	CustomerID   string    `json:"customerId,omitempty"`
	Status       string    `json:"status"`
	Duration     int       `json:"duration"`
	HasRecording bool      `json:"hasRecording"`
	EndReason    string    `json:"endReason"`
	EndedAt      time.Time `json:"endedAt"`
}

// Credentials are owned by the binding flow; the agent only reads them.
type Credentials struct {
	AuthToken       string `json:"authToken"`
	ConnectionToken string `json:"connectionToken"`
	ConnectionURL   string `json:"connectionUrl"`
}
