package wsclient

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/audit"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/model"
)

func (c *Client) dispatch(env model.Envelope) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()

	kind := env.Kind()
	log.Debug().Str("component", "wsclient").Str("type", env.Type).Stringer("kind", kind).Msg("message received")

	switch kind {
	case model.KindDial:
		var req model.DialRequest
		if err := env.Decode(&req); err != nil || req.PhoneNumber == "" {
			log.Warn().Err(err).Str("component", "wsclient").Str("callId", req.CallID).Msg("invalid dial payload")
			return
		}
		if h != nil {
			h.HandleDial(req)
		}

	case model.KindDialCancel:
		var cancel model.DialCancel
		if err := env.Decode(&cancel); err != nil {
			log.Warn().Err(err).Str("component", "wsclient").Msg("invalid dial cancel payload")
			return
		}
		if h != nil {
			h.HandleDialCancel(cancel)
		}

	case model.KindCallEnd:
		var cmd model.CallEndCommand
		if err := env.Decode(&cmd); err != nil {
			log.Warn().Err(err).Str("component", "wsclient").Msg("invalid call end payload")
			return
		}
		c.bus.Publish(events.NewEvent(events.TypeServerCallEnd, cmd.CallID, cmd))
		if h != nil {
			h.HandleServerCallEnd(cmd)
		}

	case model.KindDeviceUnbind:
		c.handleUnbind()

	case model.KindHeartbeatAck:

	default:
		log.Warn().Str("component", "wsclient").Str("type", env.Type).Msg("unknown message type")
	}
}

// handleUnbind drops the connection before clearing credentials so nothing
// further goes out under the revoked binding.
func (c *Client) handleUnbind() {
	log.Warn().Str("component", "wsclient").Msg("device unbound by server")

	c.Disconnect()
	if err := c.creds.ClearBinding(context.Background()); err != nil {
		log.Error().Err(err).Str("component", "wsclient").Msg("failed to clear binding")
	}
	audit.Log(audit.Event{Type: audit.EventDeviceUnbound})
	c.bus.Publish(events.NewEvent(events.TypeDeviceUnbound, "", nil))
}
