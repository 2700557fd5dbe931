package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/model"
)

// Cleanup deletes recordings last modified at or before now minus retention,
// whether or not they were uploaded. Individual failures are collected.
func (m *Matcher) Cleanup(ctx context.Context, retention time.Duration) model.CleanupResult {
	result := model.CleanupResult{Errors: []string{}}
	cutoff := m.clock.Now().Add(-retention)

	for _, rec := range m.Scan(ctx) {
		if rec.ModTime.After(cutoff) {
			continue
		}
		if err := m.fs.Remove(rec.Path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.Name, err))
			continue
		}
		result.DeletedCount++
		result.FreedBytes += rec.Size
	}

	log.Info().
		Str("component", "recording").
		Time("cutoff", cutoff).
		Int("deleted", result.DeletedCount).
		Int64("freedBytes", result.FreedBytes).
		Int("errors", len(result.Errors)).
		Msg("recording cleanup finished")
	return result
}

func (m *Matcher) Stats(ctx context.Context) model.RecordingStats {
	var stats model.RecordingStats
	for _, rec := range m.Scan(ctx) {
		stats.TotalCount++
		stats.TotalSize += rec.Size
		mod := rec.ModTime
		if stats.Oldest == nil || mod.Before(*stats.Oldest) {
			stats.Oldest = &mod
		}
		if stats.Newest == nil || mod.After(*stats.Newest) {
			stats.Newest = &mod
		}
	}
	return stats
}

// RecordingEnabled reports whether any recorder directory exists on the device.
func (m *Matcher) RecordingEnabled() bool {
	for _, dir := range PriorityDirs(m.brand) {
		if m.fs.DirExists(dir) {
			return true
		}
	}
	return false
}
