package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/api"
	"github.com/openclaw/dial-agent-go/internal/config"
)

type reportJob struct {
	kind   string
	callID string
	run    func(ctx context.Context) error
}

// runReports sends REST reports one at a time so the server sees them in the
// order the transitions happened.
func (c *Coordinator) runReports() {
	defer c.wg.Done()

	for job := range c.reports {
		ctx, cancel := context.WithTimeout(context.Background(), config.RESTRequestTimeout)
		err := job.run(ctx)
		cancel()
		if err != nil {
			log.Error().
				Err(err).
				Str("component", "coordinator").
				Str("callId", job.callID).
				Str("report", job.kind).
				Msg("REST report failed")
		}
	}
}

func (c *Coordinator) enqueue(kind, callID string, run func(ctx context.Context) error) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if c.closed {
		log.Warn().Str("component", "coordinator").Str("callId", callID).Str("report", kind).Msg("report dropped after shutdown")
		return
	}

	select {
	case c.reports <- reportJob{kind: kind, callID: callID, run: run}:
	default:
		log.Warn().Str("component", "coordinator").Str("callId", callID).Str("report", kind).Msg("report queue full, dropping")
	}
}

// sendStatus sends CALL_STATUS over the connection only.
func (c *Coordinator) sendStatus(callID, status string, extra map[string]any) {
	if err := c.conn.ReportCallStatus(callID, status, extra); err != nil {
		log.Debug().Err(err).Str("component", "coordinator").Str("callId", callID).Msg("status not sent over connection")
	}
}

// reportStatus sends a status over the connection and, independently, over REST.
func (c *Coordinator) reportStatus(callID, status, reason string) {
	var extra map[string]any
	if reason != "" {
		extra = map[string]any{"reason": reason}
	}
	c.sendStatus(callID, status, extra)

	report := api.StatusReport{
		CallID:    callID,
		Status:    status,
		Timestamp: c.clock.Now().UTC().Format(time.RFC3339Nano),
		Reason:    reason,
	}
	c.enqueue("status", callID, func(ctx context.Context) error {
		return c.reporter.ReportStatus(ctx, report)
	})
}
