package model

import "time"

type RecordingCandidate struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

type RecordingMatch struct {
	RecordingCandidate
	Score float64 `json:"score"`
}

type RecordingStats struct {
	TotalCount int        `json:"totalCount"`
	TotalSize  int64      `json:"totalSize"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

type CleanupResult struct {
	DeletedCount int      `json:"deletedCount"`
	FreedBytes   int64    `json:"freedBytes"`
	Errors       []string `json:"errors"`
}

// PlatformAction is one attempt to open a platform screen: either an explicit
// component ("pkg/cls") or an action with optional data URI.
type PlatformAction struct {
	Component string `json:"component,omitempty"`
	Action    string `json:"action,omitempty"`
	Data      string `json:"data,omitempty"`
}

func (a PlatformAction) String() string {
	if a.Component != "" {
		return a.Component
	}
	if a.Data != "" {
		return a.Action + " " + a.Data
	}
	return a.Action
}
