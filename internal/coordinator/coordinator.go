// Package coordinator owns the single active call session and reconciles its
// outcome with the server.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/api"
	"github.com/openclaw/dial-agent-go/internal/audit"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/metrics"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/recording"
	"github.com/openclaw/dial-agent-go/internal/tracker"
	"github.com/openclaw/dial-agent-go/internal/util"
)

const (
	reportQueueSize = 64

	reasonBusy       = "busy"
	reasonUserCancel = "user_cancel"
)

// Dialer starts a call with the platform's native dialer.
type Dialer interface {
	Dial(ctx context.Context, phoneNumber string) error
}

// Connection carries status telegrams over the realtime connection.
type Connection interface {
	ReportCallStatus(callID, status string, extra map[string]any) error
	ReportCallEnd(report model.CallEndReport) error
}

// Reporter is the REST side of reporting.
type Reporter interface {
	ReportStatus(ctx context.Context, report api.StatusReport) error
	ReportEnd(ctx context.Context, report model.CallEndReport) error
	UploadRecording(ctx context.Context, callID, path string) error
}

type CallTracker interface {
	Start(callID, phoneNumber string, customer model.Customer)
	Stop()
	CurrentDuration() int
}

type Snapshots interface {
	CurrentCall(ctx context.Context) (*model.CallSession, error)
	SaveCurrentCall(ctx context.Context, session model.CallSession) error
	ClearCurrentCall(ctx context.Context) error
	SaveLastEndedCall(ctx context.Context, ended model.EndedCall) error
}

type RecordingProcessor interface {
	Process(ctx context.Context, call recording.CallWindow, up recording.Uploader, settle time.Duration) recording.Result
}

type Options struct {
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	AutoUpload  bool
	SettleDelay time.Duration
}

type Deps struct {
	Dialer     Dialer
	Connection Connection
	Reporter   Reporter
	Tracker    CallTracker
	Snapshots  Snapshots
	Recordings RecordingProcessor
	Bus        *events.Bus
}

type Coordinator struct {
	dialer     Dialer
	conn       Connection
	reporter   Reporter
	tracker    CallTracker
	snapshots  Snapshots
	recordings RecordingProcessor
	bus        *events.Bus
	metrics    *metrics.Metrics
	clock      clock.Clock
	autoUpload bool
	settle     time.Duration

	mu      sync.Mutex
	session *model.CallSession

	queueMu sync.Mutex
	closed  bool
	reports chan reportJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		dialer:     deps.Dialer,
		conn:       deps.Connection,
		reporter:   deps.Reporter,
		tracker:    deps.Tracker,
		snapshots:  deps.Snapshots,
		recordings: deps.Recordings,
		bus:        deps.Bus,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		autoUpload: opts.AutoUpload,
		settle:     opts.SettleDelay,
		reports:    make(chan reportJob, reportQueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	c.wg.Add(1)
	go c.runReports()
	return c
}

// Admit starts a call for req. A second request while a session is active is
// rejected with a Busy error and a "rejected" status for the new call only.
func (c *Coordinator) Admit(ctx context.Context, req model.DialRequest) error {
	if req.PhoneNumber == "" {
		c.metrics.DialRequest("invalid")
		return apperrors.MissingRequired("phoneNumber")
	}

	c.mu.Lock()
	if c.session != nil {
		active := c.session.CallID
		c.mu.Unlock()

		log.Warn().
			Str("component", "coordinator").
			Str("callId", req.CallID).
			Str("activeCallId", active).
			Msg("dial request rejected, call in progress")

		c.sendStatus(req.CallID, model.CallStatusRejected, map[string]any{"reason": reasonBusy})
		c.metrics.DialRequest("busy")
		audit.Log(audit.Event{
			Type:    audit.EventDialRejected,
			CallID:  req.CallID,
			Phone:   req.PhoneNumber,
			Details: map[string]interface{}{"reason": reasonBusy, "activeCallId": active},
		})
		return apperrors.Busy(active)
	}
	session := model.NewCallSession(req, c.clock.Now())
	c.session = session
	snapshot := *session
	c.mu.Unlock()

	log.Info().
		Str("component", "coordinator").
		Str("callId", req.CallID).
		Str("phone", util.MaskPhone(req.PhoneNumber)).
		Str("customer", snapshot.CustomerName).
		Msg("dial request admitted")

	if err := c.snapshots.SaveCurrentCall(ctx, snapshot); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save call snapshot")
	}

	c.reportStatus(req.CallID, model.CallStatusDialing, "")
	c.tracker.Start(req.CallID, req.PhoneNumber, model.Customer{Name: snapshot.CustomerName, ID: snapshot.CustomerID})

	if err := c.dialer.Dial(ctx, req.PhoneNumber); err != nil {
		log.Error().Err(err).Str("component", "coordinator").Str("callId", req.CallID).Msg("dial failed")

		c.tracker.Stop()
		c.clearSession(ctx, req.CallID)
		c.reportStatus(req.CallID, model.CallStatusFailed, "")
		c.metrics.DialRequest("failed")
		audit.Log(audit.Event{
			Type:    audit.EventDialRejected,
			CallID:  req.CallID,
			Phone:   req.PhoneNumber,
			Details: map[string]interface{}{"reason": "dial_failed"},
		})
		return err
	}

	c.metrics.DialRequest("accepted")
	audit.Log(audit.Event{Type: audit.EventDialAccepted, CallID: req.CallID, Phone: req.PhoneNumber})
	return nil
}

// Cancel withdraws a dial that has not progressed past Dialing.
func (c *Coordinator) Cancel(ctx context.Context, cancel model.DialCancel) bool {
	c.mu.Lock()
	if c.session == nil || c.session.CallID != cancel.CallID || c.session.State != model.CallStateDialing {
		c.mu.Unlock()
		log.Info().Str("component", "coordinator").Str("callId", cancel.CallID).Msg("dial cancel ignored")
		return false
	}
	c.session = nil
	c.mu.Unlock()

	c.tracker.Stop()
	if err := c.snapshots.ClearCurrentCall(ctx); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to clear call snapshot")
	}

	log.Info().Str("component", "coordinator").Str("callId", cancel.CallID).Str("reason", cancel.Reason).Msg("dial cancelled")
	c.reportStatus(cancel.CallID, model.CallStatusRejected, reasonUserCancel)
	audit.Log(audit.Event{Type: audit.EventDialCancelled, CallID: cancel.CallID})
	return true
}

// Current returns a copy of the active session, or nil.
func (c *Coordinator) Current() *model.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Coordinator) CurrentDuration() int {
	return c.tracker.CurrentDuration()
}

// Recover closes out a session left behind by a previous run. The call's real
// outcome is unknown, so it is reported as failed.
func (c *Coordinator) Recover(ctx context.Context) error {
	stale, err := c.snapshots.CurrentCall(ctx)
	if err != nil {
		return err
	}
	if stale == nil {
		return nil
	}

	log.Warn().
		Str("component", "coordinator").
		Str("callId", stale.CallID).
		Str("state", string(stale.State)).
		Msg("found unfinished call from previous run")

	now := c.clock.Now()
	report := model.CallEndReport{
		CallID:    stale.CallID,
		Status:    model.CallStatusFailed,
		StartTime: stale.StartTime,
		EndTime:   now,
	}
	c.enqueue("end", stale.CallID, func(ctx context.Context) error {
		return c.reporter.ReportEnd(ctx, report)
	})

	if err := c.snapshots.SaveLastEndedCall(ctx, model.EndedCall{
		CallID:       stale.CallID,
		PhoneNumber:  stale.PhoneNumber,
		CustomerName: stale.CustomerName,
		CustomerID:   stale.CustomerID,
		Status:       model.CallStatusFailed,
		EndedAt:      now,
	}); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to save last ended call")
	}
	return c.snapshots.ClearCurrentCall(ctx)
}

// clearSession drops the session if it still belongs to callID.
func (c *Coordinator) clearSession(ctx context.Context, callID string) bool {
	c.mu.Lock()
	if c.session == nil || c.session.CallID != callID {
		c.mu.Unlock()
		return false
	}
	c.session = nil
	c.mu.Unlock()

	if err := c.snapshots.ClearCurrentCall(ctx); err != nil {
		log.Warn().Err(err).Str("component", "coordinator").Msg("failed to clear call snapshot")
	}
	return true
}

// goBackground runs fn on the coordinator's wait group unless Close has begun.
func (c *Coordinator) goBackground(fn func()) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

// Close drains pending REST reports and stops recording work.
func (c *Coordinator) Close() {
	c.queueMu.Lock()
	if c.closed {
		c.queueMu.Unlock()
		return
	}
	c.closed = true
	close(c.reports)
	c.queueMu.Unlock()

	c.cancel()
	c.wg.Wait()
}

var _ tracker.Listener = (*Coordinator)(nil)
