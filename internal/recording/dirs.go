package recording

import (
	"path/filepath"
	"strings"
)

// Directories (relative to storage root) where vendor recorders keep call audio.
var recordingDirs = []string{
	"MIUI/sound_recorder/call_rec",
	"MIUI/sound_recorder",
	"Sounds/CallRecord",
	"record",
	"Record",
	"Recordings/Call",
	"Recordings",
	"Record/Call",
	"Call",
	"Recordings/Call recordings",
	"Record/PhoneRecord",
	"AudioRecorder",
	"CallRecordings",
}

var audioExtensions = map[string]bool{
	".mp3": true,
	".amr": true,
	".wav": true,
	".m4a": true,
	".3gp": true,
	".aac": true,
	".ogg": true,
}

// vendorDirs lists a vendor's own recording directories in the order they are scanned.
type vendorDirs struct {
	brands []string
	dirs   []string
}

var vendorDirRules = []vendorDirs{
	{brands: []string{"xiaomi", "redmi"}, dirs: []string{"MIUI/sound_recorder/call_rec", "MIUI/sound_recorder"}},
	{brands: []string{"huawei", "honor"}, dirs: []string{"Sounds/CallRecord", "record"}},
	{brands: []string{"oppo", "realme"}, dirs: []string{"Recordings/Call", "Recordings", "Recordings/Call recordings"}},
	{brands: []string{"vivo", "iqoo"}, dirs: []string{"Record/Call", "Record", "Record/PhoneRecord"}},
}

func brandMatches(brand string, patterns []string) bool {
	brand = strings.ToLower(brand)
	for _, p := range patterns {
		if strings.Contains(brand, p) {
			return true
		}
	}
	return false
}

// PriorityDirs orders the recording directories so the vendor's own locations come first.
// Every directory is still returned.
func PriorityDirs(brand string) []string {
	for _, rule := range vendorDirRules {
		if !brandMatches(brand, rule.brands) {
			continue
		}
		preferred := make(map[string]bool, len(rule.dirs))
		out := make([]string, 0, len(recordingDirs))
		for _, d := range rule.dirs {
			preferred[d] = true
			out = append(out, d)
		}
		for _, d := range recordingDirs {
			if !preferred[d] {
				out = append(out, d)
			}
		}
		return out
	}
	return append([]string(nil), recordingDirs...)
}

func isAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}
