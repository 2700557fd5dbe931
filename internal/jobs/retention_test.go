package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/model"
)

type mockCleaner struct {
	mu         sync.Mutex
	calls      int
	retentions []time.Duration
	deadlines  []time.Time
	result     model.CleanupResult
}

func (m *mockCleaner) Cleanup(ctx context.Context, retention time.Duration) model.CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.retentions = append(m.retentions, retention)
	if d, ok := ctx.Deadline(); ok {
		m.deadlines = append(m.deadlines, d)
	}
	return m.result
}

func (m *mockCleaner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRetentionJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewRetentionJob(&mockCleaner{}, 72*time.Hour, 5*time.Minute, nil)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
		assert.Equal(t, 72*time.Hour, job.retention)
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		cleaner := &mockCleaner{result: model.CleanupResult{DeletedCount: 2, FreedBytes: 2048, Errors: []string{"a.mp3: permission denied"}}}
		job := NewRetentionJob(cleaner, 72*time.Hour, time.Hour, clock.NewMock())

		job.Start()
		require.Eventually(t, func() bool { return cleaner.callCount() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()

		assert.Equal(t, []time.Duration{72 * time.Hour}, cleaner.retentions)
	})

	t.Run("bounds each pass with the cleanup timeout", func(t *testing.T) {
		cleaner := &mockCleaner{}
		job := NewRetentionJob(cleaner, time.Hour, time.Hour, clock.NewMock())

		before := time.Now()
		job.Start()
		require.Eventually(t, func() bool { return cleaner.callCount() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()

		require.Len(t, cleaner.deadlines, 1)
		assert.WithinDuration(t, before.Add(config.RecordingCleanupTimeout), cleaner.deadlines[0], 5*time.Second)
	})

	t.Run("runs again on each interval", func(t *testing.T) {
		cleaner := &mockCleaner{}
		mock := clock.NewMock()
		job := NewRetentionJob(cleaner, 24*time.Hour, time.Hour, mock)

		job.Start()
		defer job.Stop()
		require.Eventually(t, func() bool { return cleaner.callCount() == 1 }, time.Second, 5*time.Millisecond)

		require.Eventually(t, func() bool {
			mock.Add(time.Hour)
			return cleaner.callCount() >= 3
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		job := NewRetentionJob(&mockCleaner{}, time.Hour, time.Hour, clock.NewMock())
		job.Start()
		job.Stop()
		job.Stop()
	})
}
