package model

import (
	"encoding/json"
	"time"
)

// Inbound message types
const (
	TypeDialRequest  = "DIAL_REQUEST"
	TypeDialCommand  = "DIAL_COMMAND"
	TypeDialCancel   = "DIAL_CANCEL"
	TypeCallEnd      = "CALL_END"
	TypeEndCall      = "END_CALL"
	TypeDeviceUnbind = "DEVICE_UNBIND"
	TypeHeartbeatAck = "HEARTBEAT_ACK"
	TypePong         = "pong"
)

// Outbound message types
const (
	TypeDeviceOnline = "DEVICE_ONLINE"
	TypeHeartbeat    = "HEARTBEAT"
	TypeCallStatus   = "CALL_STATUS"
	TypeCallEnded    = "CALL_ENDED"
)

type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindDial
	KindDialCancel
	KindCallEnd
	KindDeviceUnbind
	KindHeartbeatAck
)

func (k MessageKind) String() string {
	switch k {
	case KindDial:
		return "dial"
	case KindDialCancel:
		return "dial_cancel"
	case KindCallEnd:
		return "call_end"
	case KindDeviceUnbind:
		return "device_unbind"
	case KindHeartbeatAck:
		return "heartbeat_ack"
	default:
		return "unknown"
	}
}

// Classify maps a wire type onto the fixed set of inbound kinds.
func Classify(messageType string) MessageKind {
	switch messageType {
	case TypeDialRequest, TypeDialCommand:
		return KindDial
	case TypeDialCancel:
		return KindDialCancel
	case TypeCallEnd, TypeEndCall:
		return KindCallEnd
	case TypeDeviceUnbind:
		return KindDeviceUnbind
	case TypeHeartbeatAck, TypePong:
		return KindHeartbeatAck
	default:
		return KindUnknown
	}
}

// Envelope is one JSON frame on the connection.
type Envelope struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (e *Envelope) Kind() MessageKind {
	return Classify(e.Type)
}

// Decode unmarshals the data payload into v. An empty payload leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type DialRequest struct {
	CallID       string `json:"callId"`
	PhoneNumber  string `json:"phoneNumber"`
	CustomerName string `json:"customerName,omitempty"`
	CustomerID   string `json:"customerId,omitempty"`
	Source       string `json:"source,omitempty"`
	OperatorID   string `json:"operatorId,omitempty"`
	OperatorName string `json:"operatorName,omitempty"`
}

type DialCancel struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

type CallEndCommand struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

type DeviceOnline struct {
	DeviceID   string `json:"deviceId"`
	AppVersion string `json:"appVersion"`
}

// CallEndReport is the CALL_ENDED payload and the body of the REST end report.
type CallEndReport struct {
	CallID        string    `json:"callId"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Duration      int       `json:"duration"`
	HasRecording  bool      `json:"hasRecording"`
	RecordingPath string    `json:"recordingPath,omitempty"`
	EndReason     string    `json:"endReason,omitempty"`
}

// End reasons carried by CALL_ENDED
const (
	EndReasonSystemHangup      = "system_hangup"
	EndReasonRecordingUploaded = "recording_uploaded"
	EndReasonServerEnded       = "server_ended"
)

// UnixMillis converts t to the millisecond timestamps used on the wire. The zero time maps to 0.
func UnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
