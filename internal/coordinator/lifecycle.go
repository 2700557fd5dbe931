package coordinator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/audit"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/recording"
	"github.com/openclaw/dial-agent-go/internal/tracker"
)

// OnStateChange mirrors tracker transitions into the session and reports them.
func (c *Coordinator) OnStateChange(change tracker.StateChange) {
	c.mu.Lock()
	if c.session == nil || c.session.CallID != change.CallID {
		c.mu.Unlock()
		return
	}
	c.session.State = change.To
	if change.To == model.CallStateOffhook {
		c.session.ConnectTime = change.ConnectTime
	}
	snapshot := *c.session
	c.mu.Unlock()

	var status string
	switch change.To {
	case model.CallStateRinging:
		status = model.CallStatusRinging
	case model.CallStateOffhook:
		status = model.CallStatusConnected
	default:
		return
	}

	if err := c.snapshots.SaveCurrentCall(context.Background(), snapshot); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save call snapshot")
	}
	c.reportStatus(change.CallID, status, "")
}

// OnCallEnded reports the final outcome, clears the session and starts
// recording discovery in the background.
func (c *Coordinator) OnCallEnded(ended tracker.CallEnded) {
	ctx := context.Background()

	c.mu.Lock()
	if c.session == nil || c.session.CallID != ended.CallID {
		c.mu.Unlock()
		log.Debug().Str("component", "coordinator").Str("callId", ended.CallID).Msg("call end for cleared session ignored")
		return
	}
	session := *c.session
	c.mu.Unlock()

	report := model.CallEndReport{
		CallID:    ended.CallID,
		Status:    ended.Status,
		StartTime: ended.StartTime,
		EndTime:   ended.EndTime,
		Duration:  ended.Duration,
		EndReason: model.EndReasonSystemHangup,
	}
	c.sendEnd(report)

	c.clearSession(ctx, ended.CallID)
	c.metrics.CallEnded(ended.Status)
	audit.Log(audit.Event{
		Type:    audit.EventCallEnded,
		CallID:  ended.CallID,
		Phone:   session.PhoneNumber,
		Details: map[string]interface{}{"status": ended.Status, "duration": ended.Duration, "endReason": model.EndReasonSystemHangup},
	})

	last := model.EndedCall{
		CallID:       ended.CallID,
		PhoneNumber:  session.PhoneNumber,
		CustomerName: session.CustomerName,
		CustomerID:   session.CustomerID,
		Status:       ended.Status,
		Duration:     ended.Duration,
		EndReason:    model.EndReasonSystemHangup,
		EndedAt:      ended.EndTime,
	}
	if err := c.snapshots.SaveLastEndedCall(ctx, last); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save last ended call")
	}

	if ended.Duration <= 0 || !c.autoUpload {
		return
	}

	window := recording.CallWindow{
		CallID:      ended.CallID,
		PhoneNumber: ended.PhoneNumber,
		StartTime:   ended.StartTime,
		EndTime:     ended.EndTime,
		Duration:    ended.Duration,
	}
	if !c.goBackground(func() { c.processRecording(window, report, last) }) {
		log.Debug().Str("component", "coordinator").Str("callId", ended.CallID).Msg("shutting down, recording discovery skipped")
	}
}

func (c *Coordinator) processRecording(window recording.CallWindow, report model.CallEndReport, last model.EndedCall) {
	res := c.recordings.Process(c.ctx, window, c.reporter, c.settle)

	switch {
	case res.Err != nil:
		c.metrics.Recording("upload_failed")
		c.bus.Publish(events.NewEvent(events.TypeRecordingUploadFailed, window.CallID, map[string]string{
			"path":  res.Path,
			"error": res.Err.Error(),
		}))

	case res.Uploaded:
		c.metrics.Recording("uploaded")

		report.HasRecording = true
		report.RecordingPath = res.Path
		report.EndReason = model.EndReasonRecordingUploaded
		if err := c.conn.ReportCallEnd(report); err != nil {
			log.Debug().Err(err).Str("component", "coordinator").Str("callId", window.CallID).Msg("recording report not sent over connection")
		}

		last.HasRecording = true
		if err := c.snapshots.SaveLastEndedCall(context.Background(), last); err != nil {
			log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save last ended call")
		}

		audit.Log(audit.Event{Type: audit.EventRecordingUploaded, CallID: window.CallID, Details: map[string]interface{}{"path": res.Path}})
		c.bus.Publish(events.NewEvent(events.TypeRecordingUploaded, window.CallID, map[string]any{
			"path":  res.Path,
			"score": res.Score,
		}))

	case res.Found:
		c.metrics.Recording("skipped")

	default:
		c.metrics.Recording("not_found")
		log.Info().Str("component", "coordinator").Str("callId", window.CallID).Msg("no recording matched")
	}
}

// sendEnd sends the end report over the connection and, independently, over REST.
func (c *Coordinator) sendEnd(report model.CallEndReport) {
	if err := c.conn.ReportCallEnd(report); err != nil {
		log.Debug().Err(err).Str("component", "coordinator").Str("callId", report.CallID).Msg("end report not sent over connection")
	}
	c.enqueue("end", report.CallID, func(ctx context.Context) error {
		return c.reporter.ReportEnd(ctx, report)
	})
}
