// Package tracker infers a call's lifecycle by polling the coarse telephony status.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/model"
)

// StatusSource reports the platform's raw telephony status.
type StatusSource interface {
	CallState(ctx context.Context) (model.TelephonyStatus, error)
}

type StateChange struct {
	CallID      string
	From        model.CallState
	To          model.CallState
	At          time.Time
	ConnectTime time.Time
}

type CallEnded struct {
	CallID      string
	PhoneNumber string
	Customer    model.Customer
	StartTime   time.Time
	ConnectTime time.Time
	EndTime     time.Time
	Duration    int
	Status      string
}

// Listener receives lifecycle events. Calls happen on the polling goroutine.
type Listener interface {
	OnStateChange(StateChange)
	OnCallEnded(CallEnded)
}

type call struct {
	callID      string
	phoneNumber string
	customer    model.Customer
	state       model.CallState
	startTime   time.Time
	connectTime time.Time
}

type Tracker struct {
	source   StatusSource
	clock    clock.Clock
	interval time.Duration

	mu         sync.Mutex
	current    *call
	lastRaw    model.TelephonyStatus
	generation uint64
	stop       chan struct{}
	listeners  []Listener
}

func New(source StatusSource, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	return &Tracker{
		source:   source,
		clock:    clk,
		interval: config.TelephonyPollInterval,
	}
}

// AddListener registers l alongside any existing listeners.
func (t *Tracker) AddListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Start begins tracking a new call, replacing any call already being tracked.
func (t *Tracker) Start(callID, phoneNumber string, customer model.Customer) {
	gen, stop := t.begin(callID, phoneNumber, customer)
	go t.run(gen, stop)

	log.Info().
		Str("component", "tracker").
		Str("callId", callID).
		Dur("interval", t.interval).
		Msg("call tracking started")
}

func (t *Tracker) begin(callID, phoneNumber string, customer model.Customer) (uint64, chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.haltLocked()
	t.current = &call{
		callID:      callID,
		phoneNumber: phoneNumber,
		customer:    customer,
		state:       model.CallStateDialing,
		startTime:   t.clock.Now(),
	}
	t.lastRaw = model.TelephonyIdle
	t.stop = make(chan struct{})
	return t.generation, t.stop
}

// Stop halts polling and clears the tracked call.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		log.Info().Str("component", "tracker").Str("callId", t.current.callID).Msg("call tracking stopped")
	}
	t.haltLocked()
}

func (t *Tracker) haltLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.current = nil
	t.generation++
}

func (t *Tracker) run(gen uint64, stop chan struct{}) {
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ended := t.poll(gen); ended {
				return
			}
		}
	}
}

// poll samples the telephony status once and reports whether the call ended.
func (t *Tracker) poll(gen uint64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), config.TelephonyQueryTimeout)
	raw, err := t.source.CallState(ctx)
	cancel()
	if err != nil {
		log.Debug().Err(err).Str("component", "tracker").Msg("failed to read telephony status")
		return false
	}
	return t.observe(gen, raw)
}

func (t *Tracker) observe(gen uint64, raw model.TelephonyStatus) bool {
	t.mu.Lock()
	if gen != t.generation || t.current == nil {
		t.mu.Unlock()
		return true
	}
	if raw == t.lastRaw {
		t.mu.Unlock()
		return false
	}

	log.Debug().
		Str("component", "tracker").
		Str("callId", t.current.callID).
		Stringer("from", t.lastRaw).
		Stringer("to", raw).
		Msg("telephony status changed")
	t.lastRaw = raw

	c := t.current
	now := t.clock.Now()
	listeners := append([]Listener(nil), t.listeners...)

	switch raw {
	case model.TelephonyRinging:
		if c.state != model.CallStateDialing {
			t.mu.Unlock()
			return false
		}
		change := StateChange{CallID: c.callID, From: c.state, To: model.CallStateRinging, At: now}
		c.state = model.CallStateRinging
		t.mu.Unlock()

		for _, l := range listeners {
			l.OnStateChange(change)
		}
		return false

	case model.TelephonyOffhook:
		if !c.state.Precedes(model.CallStateOffhook) {
			t.mu.Unlock()
			return false
		}
		change := StateChange{CallID: c.callID, From: c.state, To: model.CallStateOffhook, At: now, ConnectTime: now}
		c.state = model.CallStateOffhook
		c.connectTime = now
		t.mu.Unlock()

		for _, l := range listeners {
			l.OnStateChange(change)
		}
		return false

	case model.TelephonyIdle:
		if c.state == model.CallStateIdle || c.state == model.CallStateEnded {
			t.mu.Unlock()
			return false
		}
		duration := connectedSeconds(c.connectTime, now)
		change := StateChange{CallID: c.callID, From: c.state, To: model.CallStateEnded, At: now, ConnectTime: c.connectTime}
		ended := CallEnded{
			CallID:      c.callID,
			PhoneNumber: c.phoneNumber,
			Customer:    c.customer,
			StartTime:   c.startTime,
			ConnectTime: c.connectTime,
			EndTime:     now,
			Duration:    duration,
			Status:      model.EndStatus(duration),
		}
		c.state = model.CallStateEnded
		t.haltLocked()
		t.mu.Unlock()

		log.Info().
			Str("component", "tracker").
			Str("callId", ended.CallID).
			Int("duration", duration).
			Str("status", ended.Status).
			Msg("call ended")

		for _, l := range listeners {
			l.OnStateChange(change)
		}
		for _, l := range listeners {
			l.OnCallEnded(ended)
		}
		return true
	}

	t.mu.Unlock()
	return false
}

// CurrentDuration returns whole connected seconds so far, or 0 if the call never connected.
func (t *Tracker) CurrentDuration() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return 0
	}
	return connectedSeconds(t.current.connectTime, t.clock.Now())
}

// State returns the tracked call's id and state, or false when nothing is tracked.
func (t *Tracker) State() (string, model.CallState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return "", model.CallStateIdle, false
	}
	return t.current.callID, t.current.state, true
}

// Active reports whether a call is dialing, ringing or connected.
func (t *Tracker) Active() bool {
	_, state, ok := t.State()
	if !ok {
		return false
	}
	return state == model.CallStateDialing || state == model.CallStateRinging || state == model.CallStateOffhook
}

func connectedSeconds(connectTime, now time.Time) int {
	if connectTime.IsZero() {
		return 0
	}
	return int(now.Sub(connectTime) / time.Second)
}
