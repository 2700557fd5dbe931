package recording

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
)

// Uploader hands a recording file to the server.
type Uploader interface {
	UploadRecording(ctx context.Context, callID, path string) error
}

type Result struct {
	Found    bool
	Uploaded bool
	Path     string
	Score    float64
	Err      error
}

// Upload sends path for callID unless it was uploaded before. It reports whether
// an upload actually happened. Failures are not retried.
func (m *Matcher) Upload(ctx context.Context, up Uploader, callID, path string) (bool, error) {
	if m.IsUploaded(path) {
		log.Debug().Str("component", "recording").Str("path", path).Msg("recording already uploaded, skipping")
		return false, nil
	}

	if err := up.UploadRecording(ctx, callID, path); err != nil {
		log.Error().Err(err).Str("component", "recording").Str("callId", callID).Str("path", path).Msg("recording upload failed")
		return false, apperrors.External("recording upload", err)
	}

	m.MarkUploaded(path)
	log.Info().Str("component", "recording").Str("callId", callID).Str("path", path).Msg("recording uploaded")
	return true, nil
}

// Process waits for the recorder to finish writing, then finds and uploads the
// call's recording.
func (m *Matcher) Process(ctx context.Context, call CallWindow, up Uploader, settle time.Duration) Result {
	if settle > 0 {
		select {
		case <-ctx.Done():
			return Result{Err: ctx.Err()}
		case <-m.clock.After(settle):
		}
	}

	match := m.FindMatch(ctx, call)
	if match == nil {
		return Result{}
	}

	uploaded, err := m.Upload(ctx, up, call.CallID, match.Path)
	return Result{
		Found:    true,
		Uploaded: uploaded,
		Path:     match.Path,
		Score:    match.Score,
		Err:      err,
	}
}
