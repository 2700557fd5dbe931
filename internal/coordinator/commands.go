package coordinator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/audit"
	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/wsclient"
)

var _ wsclient.Handler = (*Coordinator)(nil)

func (c *Coordinator) HandleDial(req model.DialRequest) {
	ctx, cancel := context.WithTimeout(c.ctx, config.RESTRequestTimeout)
	defer cancel()

	_ = c.Admit(ctx, req)
}

func (c *Coordinator) HandleDialCancel(cancel model.DialCancel) {
	c.Cancel(c.ctx, cancel)
}

// HandleServerCallEnd handles an operator ending the call from the console.
// The device call keeps running; the session is closed locally and the user
// is sent to the manual follow-up step.
func (c *Coordinator) HandleServerCallEnd(cmd model.CallEndCommand) {
	c.mu.Lock()
	if c.session == nil || c.session.CallID != cmd.CallID {
		c.mu.Unlock()
		log.Warn().Str("component", "coordinator").Str("callId", cmd.CallID).Msg("server call end for unknown session")
		return
	}
	session := *c.session
	c.mu.Unlock()

	now := c.clock.Now()
	elapsed := int(now.Sub(session.StartTime).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	// The device call may still be live; report what the tracker measured so far.
	duration := c.tracker.CurrentDuration()
	status := model.EndStatus(duration)

	c.tracker.Stop()
	if !c.clearSession(c.ctx, cmd.CallID) {
		return
	}

	log.Info().
		Str("component", "coordinator").
		Str("callId", cmd.CallID).
		Int("duration", duration).
		Int("elapsed", elapsed).
		Msg("server ended call, follow-up required")

	c.sendEnd(model.CallEndReport{
		CallID:    cmd.CallID,
		Status:    status,
		StartTime: session.StartTime,
		EndTime:   now,
		Duration:  duration,
		EndReason: model.EndReasonServerEnded,
	})
	c.metrics.CallEnded(status)
	audit.Log(audit.Event{
		Type:    audit.EventCallEnded,
		CallID:  cmd.CallID,
		Phone:   session.PhoneNumber,
		Details: map[string]interface{}{"status": status, "duration": duration, "endReason": model.EndReasonServerEnded},
	})

	if err := c.snapshots.SaveLastEndedCall(c.ctx, model.EndedCall{
		CallID:       cmd.CallID,
		PhoneNumber:  session.PhoneNumber,
		CustomerName: session.CustomerName,
		CustomerID:   session.CustomerID,
		Status:       status,
		Duration:     duration,
		EndReason:    model.EndReasonServerEnded,
		EndedAt:      now,
	}); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save last ended call")
	}

	c.bus.Publish(events.NewEvent(events.TypeFollowupRequired, cmd.CallID, map[string]any{
		"callId":       cmd.CallID,
		"customerName": session.CustomerName,
		"customerId":   session.CustomerID,
		"duration":     elapsed,
		"hasRecording": false,
	}))
}
