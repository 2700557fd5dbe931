package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/dial-agent-go/internal/api"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/recording"
	"github.com/openclaw/dial-agent-go/internal/tracker"
)

type fakeDialer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDialer) Dial(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, phone)
	return f.err
}

type statusMsg struct {
	callID string
	status string
	extra  map[string]any
}

type fakeConn struct {
	mu       sync.Mutex
	statuses []statusMsg
	ends     []model.CallEndReport
}

func (f *fakeConn) ReportCallStatus(callID, status string, extra map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusMsg{callID: callID, status: status, extra: extra})
	return nil
}

func (f *fakeConn) ReportCallEnd(report model.CallEndReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, report)
	return nil
}

func (f *fakeConn) statusList() []statusMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]statusMsg(nil), f.statuses...)
}

func (f *fakeConn) endList() []model.CallEndReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CallEndReport(nil), f.ends...)
}

type fakeReporter struct {
	mu       sync.Mutex
	statuses []api.StatusReport
	ends     []model.CallEndReport
	uploads  []string
	err      error
}

func (f *fakeReporter) ReportStatus(_ context.Context, r api.StatusReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, r)
	return f.err
}

func (f *fakeReporter) ReportEnd(_ context.Context, r model.CallEndReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, r)
	return f.err
}

func (f *fakeReporter) UploadRecording(_ context.Context, _ string, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	return f.err
}

type fakeTracker struct {
	mu       sync.Mutex
	started  []string
	stops    int
	duration int
	onStop   func()
}

func (f *fakeTracker) Start(callID, _ string, _ model.Customer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, callID)
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	f.stops++
	onStop := f.onStop
	f.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}

func (f *fakeTracker) CurrentDuration() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

type memSnapshots struct {
	mu      sync.Mutex
	current *model.CallSession
	last    *model.EndedCall
}

func (m *memSnapshots) CurrentCall(_ context.Context) (*model.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *memSnapshots) SaveCurrentCall(_ context.Context, s model.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

func (m *memSnapshots) ClearCurrentCall(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func (m *memSnapshots) SaveLastEndedCall(_ context.Context, e model.EndedCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &e
	return nil
}

func (m *memSnapshots) lastEnded() *model.EndedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type fakeRecordings struct {
	result recording.Result
	calls  chan recording.CallWindow
}

func newFakeRecordings(res recording.Result) *fakeRecordings {
	return &fakeRecordings{result: res, calls: make(chan recording.CallWindow, 4)}
}

func (f *fakeRecordings) Process(_ context.Context, call recording.CallWindow, _ recording.Uploader, _ time.Duration) recording.Result {
	f.calls <- call
	return f.result
}

type fixture struct {
	c          *Coordinator
	dialer     *fakeDialer
	conn       *fakeConn
	reporter   *fakeReporter
	tracker    *fakeTracker
	snapshots  *memSnapshots
	recordings *fakeRecordings
	bus        *events.Bus
	clock      *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dialer:     &fakeDialer{},
		conn:       &fakeConn{},
		reporter:   &fakeReporter{},
		tracker:    &fakeTracker{},
		snapshots:  &memSnapshots{},
		recordings: newFakeRecordings(recording.Result{}),
		bus:        events.NewBus(),
		clock:      clock.NewMock(),
	}
	f.clock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	f.c = New(Deps{
		Dialer:     f.dialer,
		Connection: f.conn,
		Reporter:   f.reporter,
		Tracker:    f.tracker,
		Snapshots:  f.snapshots,
		Recordings: f.recordings,
		Bus:        f.bus,
	}, Options{Clock: f.clock, AutoUpload: true})
	t.Cleanup(f.c.Close)
	return f
}

func dialReq(callID string) model.DialRequest {
	return model.DialRequest{CallID: callID, PhoneNumber: "13812345678", CustomerName: "Li Lei", CustomerID: "cust-9"}
}

func waitEvent(t *testing.T, sub *events.Subscriber) events.Event {
	t.Helper()
	select {
	case ev := <-sub.Events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestAdmit(t *testing.T) {
	t.Run("admits first request", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		cur := f.c.Current()
		require.NotNil(t, cur)
		assert.Equal(t, "c-1", cur.CallID)
		assert.Equal(t, model.CallStateDialing, cur.State)
		assert.True(t, f.c.Busy())

		assert.Equal(t, []string{"13812345678"}, f.dialer.calls)
		assert.Equal(t, []string{"c-1"}, f.tracker.started)
		require.NotNil(t, f.snapshots.current)
		assert.Equal(t, "c-1", f.snapshots.current.CallID)

		statuses := f.conn.statusList()
		require.Len(t, statuses, 1)
		assert.Equal(t, model.CallStatusDialing, statuses[0].status)

		f.c.Close()
		require.Len(t, f.reporter.statuses, 1)
		assert.Equal(t, "c-1", f.reporter.statuses[0].CallID)
		assert.Equal(t, model.CallStatusDialing, f.reporter.statuses[0].Status)
	})

	t.Run("rejects while busy", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		for _, id := range []string{"c-2", "c-3"} {
			err := f.c.Admit(context.Background(), dialReq(id))
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeBusy))
		}

		assert.Equal(t, "c-1", f.c.Current().CallID)
		assert.Equal(t, []string{"c-1"}, f.tracker.started)
		assert.Len(t, f.dialer.calls, 1)

		statuses := f.conn.statusList()
		require.Len(t, statuses, 3)
		assert.Equal(t, statusMsg{callID: "c-2", status: model.CallStatusRejected, extra: map[string]any{"reason": "busy"}}, statuses[1])
		assert.Equal(t, "c-3", statuses[2].callID)

		f.c.Close()
		assert.Len(t, f.reporter.statuses, 1)
	})

	t.Run("missing phone number", func(t *testing.T) {
		f := newFixture(t)
		err := f.c.Admit(context.Background(), model.DialRequest{CallID: "c-1"})
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeMissingRequired))
		assert.False(t, f.c.Busy())
	})

	t.Run("dial failure clears the session", func(t *testing.T) {
		f := newFixture(t)
		f.dialer.err = errors.New("adb: device offline")

		err := f.c.Admit(context.Background(), dialReq("c-1"))
		require.Error(t, err)

		assert.False(t, f.c.Busy())
		assert.Nil(t, f.snapshots.current)
		assert.Equal(t, 1, f.tracker.stops)

		statuses := f.conn.statusList()
		require.Len(t, statuses, 2)
		assert.Equal(t, model.CallStatusFailed, statuses[1].status)

		f.c.Close()
		require.Len(t, f.reporter.statuses, 2)
		assert.Equal(t, model.CallStatusFailed, f.reporter.statuses[1].Status)
	})
}

func TestLifecycle(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("transitions are reported in order", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.c.OnStateChange(tracker.StateChange{CallID: "c-1", From: model.CallStateDialing, To: model.CallStateRinging, At: start})
		f.c.OnStateChange(tracker.StateChange{CallID: "c-1", From: model.CallStateRinging, To: model.CallStateOffhook, At: start.Add(3 * time.Second), ConnectTime: start.Add(3 * time.Second)})
		f.c.OnStateChange(tracker.StateChange{CallID: "stale", To: model.CallStateRinging})

		cur := f.c.Current()
		assert.Equal(t, model.CallStateOffhook, cur.State)
		assert.True(t, cur.ConnectTime.Equal(start.Add(3*time.Second)))
		assert.Equal(t, model.CallStateOffhook, f.snapshots.current.State)

		var got []string
		for _, s := range f.conn.statusList() {
			got = append(got, s.status)
		}
		assert.Equal(t, []string{model.CallStatusDialing, model.CallStatusRinging, model.CallStatusConnected}, got)

		f.c.Close()
		require.Len(t, f.reporter.statuses, 3)
		assert.Equal(t, model.CallStatusConnected, f.reporter.statuses[2].Status)
	})

	t.Run("call end reports and uploads recording", func(t *testing.T) {
		f := newFixture(t)
		f.recordings.result = recording.Result{Found: true, Uploaded: true, Path: "/sdcard/MIUI/sound_recorder/call_rec/13812345678.mp3", Score: 95}
		sub := f.bus.Subscribe(events.TypeRecordingUploaded)

		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.c.OnCallEnded(tracker.CallEnded{
			CallID:      "c-1",
			PhoneNumber: "13812345678",
			StartTime:   start,
			ConnectTime: start.Add(5 * time.Second),
			EndTime:     start.Add(65 * time.Second),
			Duration:    60,
			Status:      model.CallStatusConnected,
		})

		assert.False(t, f.c.Busy())
		assert.Nil(t, f.snapshots.current)

		ends := f.conn.endList()
		require.NotEmpty(t, ends)
		assert.Equal(t, model.EndReasonSystemHangup, ends[0].EndReason)
		assert.False(t, ends[0].HasRecording)
		assert.Equal(t, 60, ends[0].Duration)

		window := <-f.recordings.calls
		assert.Equal(t, "c-1", window.CallID)
		assert.Equal(t, 60, window.Duration)

		ev := waitEvent(t, sub)
		assert.Equal(t, "c-1", ev.CallID)

		ends = f.conn.endList()
		require.Len(t, ends, 2)
		assert.True(t, ends[1].HasRecording)
		assert.Equal(t, model.EndReasonRecordingUploaded, ends[1].EndReason)
		assert.Equal(t, f.recordings.result.Path, ends[1].RecordingPath)

		f.c.Close()
		require.Len(t, f.reporter.ends, 1)
		assert.Equal(t, model.CallStatusConnected, f.reporter.ends[0].Status)

		last := f.snapshots.lastEnded()
		require.NotNil(t, last)
		assert.True(t, last.HasRecording)
		assert.Equal(t, "Li Lei", last.CustomerName)
	})

	t.Run("missed call skips recording discovery", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.c.OnCallEnded(tracker.CallEnded{CallID: "c-1", StartTime: start, EndTime: start.Add(20 * time.Second), Status: model.CallStatusMissed})
		f.c.Close()

		assert.Empty(t, f.recordings.calls)
		require.Len(t, f.reporter.ends, 1)
		assert.Equal(t, model.CallStatusMissed, f.reporter.ends[0].Status)
		assert.Equal(t, model.CallStatusMissed, f.snapshots.lastEnded().Status)
	})

	t.Run("upload failure publishes a notice", func(t *testing.T) {
		f := newFixture(t)
		f.recordings.result = recording.Result{Found: true, Path: "/sdcard/Recordings/a.m4a", Err: apperrors.External("recording upload", errors.New("503"))}
		sub := f.bus.Subscribe(events.TypeRecordingUploadFailed)

		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.c.OnCallEnded(tracker.CallEnded{CallID: "c-1", StartTime: start, EndTime: start.Add(time.Minute), Duration: 30, Status: model.CallStatusConnected})

		ev := waitEvent(t, sub)
		var data map[string]string
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, "/sdcard/Recordings/a.m4a", data["path"])
		assert.Len(t, f.conn.endList(), 1)
	})

	t.Run("end for another call is ignored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.c.OnCallEnded(tracker.CallEnded{CallID: "c-old", Duration: 10})
		assert.True(t, f.c.Busy())
		assert.Empty(t, f.conn.endList())
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancels a dialing session", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		assert.True(t, f.c.Cancel(context.Background(), model.DialCancel{CallID: "c-1"}))
		assert.False(t, f.c.Busy())
		assert.Equal(t, 1, f.tracker.stops)

		statuses := f.conn.statusList()
		assert.Equal(t, statusMsg{callID: "c-1", status: model.CallStatusRejected, extra: map[string]any{"reason": "user_cancel"}}, statuses[len(statuses)-1])

		f.c.Close()
		assert.Equal(t, "user_cancel", f.reporter.statuses[1].Reason)
	})

	t.Run("ignored once ringing", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.c.OnStateChange(tracker.StateChange{CallID: "c-1", To: model.CallStateRinging})

		assert.False(t, f.c.Cancel(context.Background(), model.DialCancel{CallID: "c-1"}))
		assert.True(t, f.c.Busy())
	})

	t.Run("ignored for another call", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.c.HandleDialCancel(model.DialCancel{CallID: "c-9"})
		assert.True(t, f.c.Busy())
		assert.Equal(t, 0, f.tracker.stops)
	})

	t.Run("late ringing after cancel is not reported", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.tracker.onStop = func() {
			f.c.OnStateChange(tracker.StateChange{CallID: "c-1", From: model.CallStateDialing, To: model.CallStateRinging})
		}

		assert.True(t, f.c.Cancel(context.Background(), model.DialCancel{CallID: "c-1"}))

		var got []string
		for _, s := range f.conn.statusList() {
			got = append(got, s.status)
		}
		assert.Equal(t, []string{model.CallStatusDialing, model.CallStatusRejected}, got)
		assert.Nil(t, f.snapshots.current)
	})
}

func TestHandleServerCallEnd(t *testing.T) {
	t.Run("matching session needs follow-up", func(t *testing.T) {
		f := newFixture(t)
		sub := f.bus.Subscribe(events.TypeFollowupRequired)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.clock.Add(42 * time.Second)

		f.c.HandleServerCallEnd(model.CallEndCommand{CallID: "c-1"})

		assert.False(t, f.c.Busy())
		assert.Equal(t, 1, f.tracker.stops)

		ev := waitEvent(t, sub)
		var data map[string]any
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, "Li Lei", data["customerName"])
		assert.Equal(t, float64(42), data["duration"])
		assert.Equal(t, false, data["hasRecording"])

		ends := f.conn.endList()
		require.Len(t, ends, 1)
		assert.Equal(t, model.EndReasonServerEnded, ends[0].EndReason)
		assert.Equal(t, model.CallStatusMissed, ends[0].Status)
		assert.Equal(t, 0, ends[0].Duration)

		f.c.Close()
		require.Len(t, f.reporter.ends, 1)
		assert.Equal(t, 0, f.reporter.ends[0].Duration)
	})

	t.Run("connected call reports connected seconds", func(t *testing.T) {
		f := newFixture(t)
		sub := f.bus.Subscribe(events.TypeFollowupRequired)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.clock.Add(20 * time.Second)
		f.c.OnStateChange(tracker.StateChange{CallID: "c-1", From: model.CallStateDialing, To: model.CallStateRinging})
		f.c.OnStateChange(tracker.StateChange{CallID: "c-1", From: model.CallStateRinging, To: model.CallStateOffhook, ConnectTime: f.clock.Now()})
		f.clock.Add(5 * time.Second)
		f.tracker.duration = 5

		f.c.HandleServerCallEnd(model.CallEndCommand{CallID: "c-1"})

		ends := f.conn.endList()
		require.Len(t, ends, 1)
		assert.Equal(t, model.CallStatusConnected, ends[0].Status)
		assert.Equal(t, 5, ends[0].Duration)
		assert.Equal(t, 5, f.snapshots.lastEnded().Duration)

		ev := waitEvent(t, sub)
		var data map[string]any
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, float64(25), data["duration"])

		f.c.Close()
		require.Len(t, f.reporter.ends, 1)
		assert.Equal(t, model.CallStatusConnected, f.reporter.ends[0].Status)
		assert.Equal(t, 5, f.reporter.ends[0].Duration)
	})

	t.Run("unknown session is ignored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))

		f.c.HandleServerCallEnd(model.CallEndCommand{CallID: "other"})
		assert.True(t, f.c.Busy())
		assert.Empty(t, f.conn.endList())
	})
}

func TestHandleDial(t *testing.T) {
	f := newFixture(t)
	f.c.HandleDial(dialReq("c-1"))
	f.c.HandleDial(dialReq("c-2"))

	assert.Equal(t, "c-1", f.c.Current().CallID)
	assert.Equal(t, model.CallStatusRejected, f.conn.statusList()[1].status)
}

func TestRecover(t *testing.T) {
	t.Run("reports stale session as failed", func(t *testing.T) {
		f := newFixture(t)
		f.snapshots.current = &model.CallSession{CallID: "c-old", PhoneNumber: "10086", State: model.CallStateOffhook, StartTime: f.clock.Now().Add(-time.Hour)}

		require.NoError(t, f.c.Recover(context.Background()))
		assert.Nil(t, f.snapshots.current)
		assert.Equal(t, model.CallStatusFailed, f.snapshots.lastEnded().Status)

		f.c.Close()
		require.Len(t, f.reporter.ends, 1)
		assert.Equal(t, "c-old", f.reporter.ends[0].CallID)
	})

	t.Run("nothing to recover", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Recover(context.Background()))
		f.c.Close()
		assert.Empty(t, f.reporter.ends)
	})
}

func TestClose(t *testing.T) {
	t.Run("reports after close are dropped", func(t *testing.T) {
		f := newFixture(t)
		f.c.Close()

		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		assert.Empty(t, f.reporter.statuses)
	})

	t.Run("call end after close skips recording discovery", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Admit(context.Background(), dialReq("c-1")))
		f.c.Close()

		start := f.clock.Now()
		f.c.OnCallEnded(tracker.CallEnded{
			CallID:      "c-1",
			PhoneNumber: "13812345678",
			Status:      model.CallStatusConnected,
			StartTime:   start,
			EndTime:     start.Add(30 * time.Second),
			Duration:    30,
		})

		assert.False(t, f.c.Busy())
		assert.Empty(t, f.recordings.calls)
	})
}

type sequenceSource struct {
	status atomic.Int32
}

func (s *sequenceSource) CallState(_ context.Context) (model.TelephonyStatus, error) {
	return model.TelephonyStatus(s.status.Load()), nil
}

func TestEndToEnd(t *testing.T) {
	root := t.TempDir()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	source := &sequenceSource{}
	tr := tracker.New(source, mock)
	matcher := recording.NewMatcher(recording.LocalFS{Root: root}, recording.Options{Brand: "xiaomi", Clock: mock})

	conn := &fakeConn{}
	reporter := &fakeReporter{}
	snapshots := &memSnapshots{}
	bus := events.NewBus()
	sub := bus.Subscribe(events.TypeRecordingUploaded)

	c := New(Deps{
		Dialer:     &fakeDialer{},
		Connection: conn,
		Reporter:   reporter,
		Tracker:    tr,
		Snapshots:  snapshots,
		Recordings: matcher,
		Bus:        bus,
	}, Options{Clock: mock, AutoUpload: true})
	tr.AddListener(c)
	t.Cleanup(c.Close)

	require.NoError(t, c.Admit(context.Background(), dialReq("c-e2e")))

	advanceUntil := func(status model.TelephonyStatus, want string) {
		source.status.Store(int32(status))
		require.Eventually(t, func() bool {
			mock.Add(500 * time.Millisecond)
			for _, s := range conn.statusList() {
				if s.status == want {
					return true
				}
			}
			return false
		}, 2*time.Second, 5*time.Millisecond)
	}

	advanceUntil(model.TelephonyRinging, model.CallStatusRinging)
	advanceUntil(model.TelephonyOffhook, model.CallStatusConnected)

	mock.Add(90 * time.Second)

	dir := filepath.Join(root, "MIUI/sound_recorder/call_rec")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "138 1234 5678_20240501.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, 90*10*1024), 0o644))
	mod := mock.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(path, mod, mod))

	source.status.Store(int32(model.TelephonyIdle))
	require.Eventually(t, func() bool {
		if len(conn.endList()) > 0 {
			return true
		}
		mock.Add(500 * time.Millisecond)
		return false
	}, 2*time.Second, 5*time.Millisecond)

	first := conn.endList()[0]
	assert.Equal(t, model.CallStatusConnected, first.Status)
	assert.GreaterOrEqual(t, first.Duration, 90)
	assert.False(t, first.HasRecording)
	assert.Equal(t, model.EndReasonSystemHangup, first.EndReason)
	assert.False(t, c.Busy())

	ev := waitEvent(t, sub)
	assert.Equal(t, "c-e2e", ev.CallID)
	assert.True(t, matcher.IsUploaded(path))

	ends := conn.endList()
	require.Len(t, ends, 2)
	assert.True(t, ends[1].HasRecording)
	assert.Equal(t, path, ends[1].RecordingPath)

	c.Close()
	assert.Equal(t, []string{path}, reporter.uploads)
	require.Len(t, reporter.ends, 1)
}
