package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerHost string `env:"SERVER_HOST"`
	AuthToken  string `env:"AUTH_TOKEN"`
	WSToken    string `env:"WS_TOKEN"`
	WSURL      string `env:"WS_URL"`
	DeviceID   string `env:"DEVICE_ID"`
	AppVersion string `env:"APP_VERSION" envDefault:"1.0.0"`

	DeviceBrand string `env:"DEVICE_BRAND"`
	ADBPath     string `env:"ADB_PATH" envDefault:"adb"`
	ADBSerial   string `env:"ADB_SERIAL"`
	StorageRoot string `env:"STORAGE_ROOT" envDefault:"/storage/emulated/0"`

	StateDSN     string `env:"STATE_DSN" envDefault:"file:agent.db"`
	RedisURL     string `env:"REDIS_URL"`
	ListenPort   int    `env:"LISTEN_PORT" envDefault:"8090"`
	ControlToken string `env:"CONTROL_TOKEN"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	RecordingMatchThreshold     int  `env:"RECORDING_MATCH_THRESHOLD" envDefault:"50"`
	RecordingMatchWindowSeconds int  `env:"RECORDING_MATCH_WINDOW_SECONDS" envDefault:"30"`
	RecordingRetentionDays      int  `env:"RECORDING_RETENTION_DAYS" envDefault:"3"`
	RecordingSettleSeconds      int  `env:"RECORDING_SETTLE_SECONDS" envDefault:"2"`
	AutoUploadRecording         bool `env:"AUTO_UPLOAD_RECORDING" envDefault:"true"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}

func (c *Config) MatchWindow() time.Duration {
	return time.Duration(c.RecordingMatchWindowSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RecordingRetentionDays) * 24 * time.Hour
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.RecordingSettleSeconds) * time.Second
}

func (c *Config) Validate() error {
	if c.RecordingMatchThreshold <= 0 {
		return fmt.Errorf("RECORDING_MATCH_THRESHOLD must be positive")
	}
	if c.RecordingMatchWindowSeconds <= 0 {
		return fmt.Errorf("RECORDING_MATCH_WINDOW_SECONDS must be positive")
	}
	if c.RecordingRetentionDays <= 0 {
		return fmt.Errorf("RECORDING_RETENTION_DAYS must be positive")
	}
	if c.RecordingSettleSeconds < 0 {
		return fmt.Errorf("RECORDING_SETTLE_SECONDS must not be negative")
	}
	if c.StateDSN == "" {
		return fmt.Errorf("STATE_DSN must not be empty")
	}
	return nil
}

// Load reads the agent configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
