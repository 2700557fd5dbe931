package config

import "time"

// Telephony polling
const (
	TelephonyPollInterval = 500 * time.Millisecond
	TelephonyQueryTimeout = 2 * time.Second
)

// Connection timings
const (
	HeartbeatInterval     = 30 * time.Second
	ReconnectBaseDelay    = 3 * time.Second
	ReconnectMultiplier   = 1.5
	ReconnectMaxDelay     = 30 * time.Second
	ReconnectMaxAttempts  = 10
	ConnectionWriteWait   = 10 * time.Second
	ConnectionDialTimeout = 15 * time.Second
)

// REST collaborator timeouts
const (
	EndpointProbeTimeout = 5 * time.Second
	RESTRequestTimeout   = 15 * time.Second
	UploadTimeout        = 2 * time.Minute
)

// Local control API timeouts
const (
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)

// Startup covers opening the store and the first endpoint probe
const StartupTimeout = 30 * time.Second

// Background job intervals
const (
	RecordingCleanupInterval = time.Hour
	RecordingCleanupTimeout  = 30 * time.Second
)

// Recording heuristics
const (
	RecordingBytesPerSecond = 10 * 1024
	ServerHistoryLimit      = 5
)
