package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/api"
	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/coordinator"
	"github.com/openclaw/dial-agent-go/internal/device"
	"github.com/openclaw/dial-agent-go/internal/endpoint"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/events"
	"github.com/openclaw/dial-agent-go/internal/handler"
	"github.com/openclaw/dial-agent-go/internal/jobs"
	"github.com/openclaw/dial-agent-go/internal/metrics"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/recording"
	"github.com/openclaw/dial-agent-go/internal/store"
	"github.com/openclaw/dial-agent-go/internal/tracker"
	"github.com/openclaw/dial-agent-go/internal/util"
	"github.com/openclaw/dial-agent-go/internal/wsclient"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), config.StartupTimeout)
	defer cancel()

	db, err := store.Open(ctx, cfg.StateDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}
	defer db.Close()
	log.Info().Msg("state store opened")

	state := store.NewState(store.NewKV(db), model.Credentials{
		AuthToken:       cfg.AuthToken,
		ConnectionToken: cfg.WSToken,
		ConnectionURL:   cfg.WSURL,
	})

	deviceID, err := state.DeviceID(ctx, cfg.DeviceID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to determine device id")
	}

	if cfg.RedisURL != "" {
		mirror, err := store.NewRedisMirror(ctx, cfg.RedisURL, deviceID)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, snapshots stay local")
		} else {
			defer mirror.Close()
			state.SetMirror(mirror)
			log.Info().Msg("redis snapshot mirror connected")
		}
	}

	resolver := endpoint.NewResolver(state)
	if cfg.ServerHost != "" {
		if _, err := resolver.Resolve(ctx, cfg.ServerHost); err != nil {
			log.Warn().Err(err).Str("host", cfg.ServerHost).Msg("server not reachable, using stored endpoint")
		}
	}

	adb := device.NewADB(cfg.ADBPath, cfg.ADBSerial)
	brand := cfg.DeviceBrand
	if brand == "" {
		if brand, err = adb.Brand(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to read device brand")
		}
	}

	clk := clock.New()
	m := metrics.New()
	bus := events.NewBus()

	apiClient := api.NewClient(state)
	if err := apiClient.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("REST API not reachable yet")
	}

	matcher := recording.NewMatcher(recording.LocalFS{Root: cfg.StorageRoot}, recording.Options{
		Brand:     brand,
		Threshold: float64(cfg.RecordingMatchThreshold),
		Window:    cfg.MatchWindow(),
		Clock:     clk,
	})
	if !matcher.RecordingEnabled() {
		log.Warn().Str("brand", brand).Msg("no call recording directory found, system call recording may be off")
	}

	callTracker := tracker.New(adb, clk)

	client := wsclient.New(state, bus, wsclient.Options{
		DeviceID:   deviceID,
		AppVersion: cfg.AppVersion,
		Clock:      clk,
		Metrics:    m,
	})

	coord := coordinator.New(coordinator.Deps{
		Dialer:     adb,
		Connection: client,
		Reporter:   apiClient,
		Tracker:    callTracker,
		Snapshots:  state,
		Recordings: matcher,
		Bus:        bus,
	}, coordinator.Options{
		Clock:       clk,
		Metrics:     m,
		AutoUpload:  cfg.AutoUploadRecording,
		SettleDelay: cfg.SettleDelay(),
	})
	callTracker.AddListener(coord)
	client.SetHandler(coord)

	if err := coord.Recover(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to recover previous call")
	}

	m.RegisterStatus(agentStatus{client: client, coord: coord}, time.Now())

	go logSignals(bus.Subscribe(
		events.TypeNeedRebind,
		events.TypeMaxReconnect,
		events.TypeDeviceUnbound,
		events.TypeFollowupRequired,
		events.TypeRecordingUploadFailed,
	))

	retentionJob := jobs.NewRetentionJob(matcher, cfg.Retention(), config.RecordingCleanupInterval, clk)
	retentionJob.Start()
	defer retentionJob.Stop()

	creds, err := state.Credentials(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read credentials")
	}
	log.Info().
		Str("deviceId", deviceID).
		Str("brand", brand).
		Str("token", util.TokenFingerprint(creds.ConnectionToken)).
		Msg("agent starting")

	if err := client.Connect(context.Background()); err != nil {
		if apperrors.Is(err, apperrors.ErrCodePrecondition) {
			log.Warn().Err(err).Msg("device is not bound, run the bind tool")
		} else {
			log.Warn().Err(err).Msg("initial connect failed, retrying in background")
		}
	}

	router := handler.NewRouter(handler.Handlers{
		Status:       handler.NewStatusHandler(client, coord, state, deviceID, cfg.AppVersion),
		Recordings:   handler.NewRecordingHandler(matcher, recording.NewEnabler(adb, brand), cfg.Retention()),
		Events:       handler.NewEventsHandler(bus),
		Metrics:      m.Handler(),
		ControlToken: cfg.ControlToken,
	})

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting control server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down agent")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	bus.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	client.Disconnect()
	callTracker.Stop()
	coord.Close()

	log.Info().Msg("agent stopped")
}

// agentStatus feeds the scrape-time gauges.
type agentStatus struct {
	client *wsclient.Client
	coord  *coordinator.Coordinator
}

func (s agentStatus) Connected() bool  { return s.client.Connected() }
func (s agentStatus) ActiveCall() bool { return s.coord.Busy() }

// logSignals surfaces the events that need the operator's attention.
func logSignals(sub *events.Subscriber) {
	for {
		select {
		case <-sub.Done:
			return
		case ev := <-sub.Events:
			log.Warn().
				Str("event", ev.Type).
				Str("callId", ev.CallID).
				RawJSON("data", nonEmpty(ev.Data)).
				Msg("attention required")
		}
	}
}

func nonEmpty(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
