package recording

import (
	"os"
	"path/filepath"

	"github.com/openclaw/dial-agent-go/internal/model"
)

// FileSystem is the view of device storage the matcher scans.
type FileSystem interface {
	// ListFiles returns the regular files directly inside dir.
	ListFiles(dir string) ([]model.RecordingCandidate, error)
	DirExists(dir string) bool
	Remove(path string) error
}

// LocalFS resolves directories relative to Root.
type LocalFS struct {
	Root string
}

func (l LocalFS) abs(dir string) string {
	return filepath.Join(l.Root, dir)
}

func (l LocalFS) ListFiles(dir string) ([]model.RecordingCandidate, error) {
	full := l.abs(dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	out := make([]model.RecordingCandidate, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, model.RecordingCandidate{
			Path:    filepath.Join(full, e.Name()),
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (l LocalFS) DirExists(dir string) bool {
	info, err := os.Stat(l.abs(dir))
	return err == nil && info.IsDir()
}

func (l LocalFS) Remove(path string) error {
	return os.Remove(path)
}
