// Package recording locates the audio file a system recorder wrote for a call.
package recording

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/model"
)

// Score weights
const (
	recencyPoints  = 50
	filenamePoints = 40
	sizePoints     = 20
	sizeTolerance  = 0.5
)

const (
	DefaultThreshold = 50
	DefaultWindow    = 30 * time.Second
)

// CallWindow describes a finished call for matching.
type CallWindow struct {
	CallID      string
	PhoneNumber string
	StartTime   time.Time
	EndTime     time.Time
	Duration    int
}

type Options struct {
	Brand     string
	Threshold float64
	Window    time.Duration
	Clock     clock.Clock
}

type Matcher struct {
	fs        FileSystem
	brand     string
	threshold float64
	window    time.Duration
	clock     clock.Clock

	mu       sync.Mutex
	uploaded map[string]bool
}

func NewMatcher(fs FileSystem, opts Options) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Matcher{
		fs:        fs,
		brand:     opts.Brand,
		threshold: opts.Threshold,
		window:    opts.Window,
		clock:     opts.Clock,
		uploaded:  make(map[string]bool),
	}
}

// Scan lists audio files across all recording directories in vendor priority order.
// Missing or unreadable directories are skipped.
func (m *Matcher) Scan(ctx context.Context) []model.RecordingCandidate {
	var out []model.RecordingCandidate
	seen := make(map[string]bool)

	for _, dir := range PriorityDirs(m.brand) {
		if ctx.Err() != nil {
			break
		}
		files, err := m.fs.ListFiles(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !isAudioFile(f.Name) || seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			out = append(out, f)
		}
	}
	return out
}

// FindMatch returns the best candidate for the call, or nil when nothing scores
// at least the threshold. Already uploaded files are never proposed.
func (m *Matcher) FindMatch(ctx context.Context, call CallWindow) *model.RecordingMatch {
	candidates := m.Scan(ctx)
	if len(candidates) == 0 {
		log.Info().Str("component", "recording").Str("callId", call.CallID).Msg("no recording files found")
		return nil
	}

	variants := PhoneVariants(call.PhoneNumber)

	var best *model.RecordingCandidate
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		if m.IsUploaded(c.Path) {
			continue
		}
		score := Score(*c, call, variants, m.window)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if best == nil || bestScore < m.threshold {
		log.Info().
			Str("component", "recording").
			Str("callId", call.CallID).
			Int("candidates", len(candidates)).
			Float64("bestScore", bestScore).
			Msg("no matching recording")
		return nil
	}

	log.Info().
		Str("component", "recording").
		Str("callId", call.CallID).
		Str("file", best.Name).
		Float64("score", bestScore).
		Msg("recording matched")
	return &model.RecordingMatch{RecordingCandidate: *best, Score: bestScore}
}

// Score rates how likely c is the recording of call.
func Score(c model.RecordingCandidate, call CallWindow, variants []string, window time.Duration) float64 {
	score := 0.0

	diff := c.ModTime.Sub(call.EndTime)
	if diff < 0 {
		diff = -diff
	}
	if diff <= window {
		score += recencyPoints
		score += math.Max(0, window.Seconds()-diff.Seconds())
	}

	for _, v := range variants {
		if v != "" && strings.Contains(c.Name, v) {
			score += filenamePoints
			break
		}
	}

	expected := float64(call.Duration) * config.RecordingBytesPerSecond
	if math.Abs(float64(c.Size)-expected) < expected*sizeTolerance {
		score += sizePoints
	}

	return score
}

// PhoneVariants returns the forms a phone number may take inside a recording filename.
func PhoneVariants(phone string) []string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return nil
	}

	variants := []string{digits}
	if strings.HasPrefix(digits, "86") && len(digits) > 2 {
		variants = append(variants, digits[2:])
	}
	if len(digits) == 11 {
		variants = append(variants,
			digits[:3]+"-"+digits[3:7]+"-"+digits[7:],
			digits[:3]+" "+digits[3:7]+" "+digits[7:],
		)
	}
	return variants
}

func (m *Matcher) IsUploaded(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploaded[path]
}

// MarkUploaded records path as uploaded. It reports false when path was already known.
func (m *Matcher) MarkUploaded(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploaded[path] {
		return false
	}
	m.uploaded[path] = true
	return true
}

func (m *Matcher) UploadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploaded)
}
