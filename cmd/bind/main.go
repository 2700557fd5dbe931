// Command bind stores the device binding produced by the pairing flow, or
// clears it with -unbind.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	"github.com/openclaw/dial-agent-go/internal/endpoint"
	"github.com/openclaw/dial-agent-go/internal/model"
	"github.com/openclaw/dial-agent-go/internal/store"
	"github.com/openclaw/dial-agent-go/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dsn := flag.String("dsn", envOr("STATE_DSN", "file:agent.db"), "state store DSN")
	host := flag.String("host", "", "server address, e.g. 192.168.1.10:8080 or https://api.example.com")
	authToken := flag.String("auth-token", "", "REST bearer token")
	wsToken := flag.String("ws-token", "", "connection token")
	wsURL := flag.String("ws-url", "", "connection URL, derived from -host when empty")
	unbind := flag.Bool("unbind", false, "clear the stored binding")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), config.StartupTimeout)
	defer cancel()

	db, err := store.Open(ctx, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open state store")
	}
	defer db.Close()
	state := store.NewState(store.NewKV(db), model.Credentials{})

	if *unbind {
		if err := state.ClearBinding(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to clear binding")
		}
		log.Info().Msg("binding cleared")
		return
	}

	if *host == "" || *wsToken == "" {
		flag.Usage()
		os.Exit(2)
	}

	ep, err := endpoint.NewResolver(state).Resolve(ctx, *host)
	if err != nil {
		log.Fatal().Err(err).Str("host", *host).Msg("server not reachable")
	}

	url := *wsURL
	if url == "" {
		url = ep.BaseConnectionURL()
	}
	creds := model.Credentials{
		AuthToken:       *authToken,
		ConnectionToken: *wsToken,
		ConnectionURL:   endpoint.NormalizeConnectionURL(url),
	}
	if err := state.SaveCredentials(ctx, creds); err != nil {
		log.Fatal().Err(err).Msg("failed to save binding")
	}

	log.Info().
		Str("host", ep.Display()).
		Str("url", creds.ConnectionURL).
		Str("token", util.TokenFingerprint(creds.ConnectionToken)).
		Msg("device bound")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
