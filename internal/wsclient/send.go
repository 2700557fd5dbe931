package wsclient

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/model"
)

// Send writes one message. It never blocks waiting for a connection; when
// disconnected the message is dropped with a warning.
func (c *Client) Send(msgType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		log.Warn().Str("component", "wsclient").Str("type", msgType).Msg("not connected, dropping message")
		return apperrors.NotConnected()
	}

	env := model.Envelope{
		Type:      msgType,
		MessageID: uuid.NewString(),
		Timestamp: model.UnixMillis(c.clock.Now()),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to encode message", err)
		}
		env.Data = raw
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(config.ConnectionWriteWait))
	if err := conn.WriteJSON(env); err != nil {
		log.Warn().Err(err).Str("component", "wsclient").Str("type", msgType).Msg("failed to send message")
		return apperrors.Connectivity(err)
	}
	return nil
}

func (c *Client) sendDeviceOnline() {
	_ = c.Send(model.TypeDeviceOnline, model.DeviceOnline{DeviceID: c.deviceID, AppVersion: c.appVersion})
}

// ReportCallStatus sends CALL_STATUS with extra merged into the payload.
func (c *Client) ReportCallStatus(callID, status string, extra map[string]any) error {
	payload := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		payload[k] = v
	}
	payload["callId"] = callID
	payload["status"] = status
	payload["timestamp"] = c.clock.Now().UTC().Format(time.RFC3339Nano)
	return c.Send(model.TypeCallStatus, payload)
}

func (c *Client) ReportCallEnd(report model.CallEndReport) error {
	return c.Send(model.TypeCallEnded, report)
}
