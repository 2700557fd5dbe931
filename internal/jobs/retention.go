package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/model"
)

// Cleaner removes local recordings older than a retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) model.CleanupResult
}

type RetentionJob struct {
	cleaner   Cleaner
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewRetentionJob(cleaner Cleaner, retention, interval time.Duration, clk clock.Clock) *RetentionJob {
	if clk == nil {
		clk = clock.New()
	}
	return &RetentionJob{
		cleaner:   cleaner,
		retention: retention,
		interval:  interval,
		clock:     clk,
		done:      make(chan struct{}),
	}
}

func (j *RetentionJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("recording retention job started")
}

func (j *RetentionJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("recording retention job stopped")
	})
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	ticker := j.clock.Ticker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *RetentionJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), config.RecordingCleanupTimeout)
	defer cancel()

	result := j.cleaner.Cleanup(ctx, j.retention)
	for _, e := range result.Errors {
		log.Warn().Str("error", e).Msg("failed to delete recording")
	}
	if result.DeletedCount > 0 {
		log.Info().Int("count", result.DeletedCount).Int64("freedBytes", result.FreedBytes).Msg("cleaned up recordings")
	}
}
