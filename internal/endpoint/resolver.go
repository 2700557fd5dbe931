package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/config"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
)

const pingPath = "/mobile/ping"

// Store persists the current endpoint and the recently used ones.
type Store interface {
	SaveEndpoint(ctx context.Context, ep Endpoint) error
	ServerHistory(ctx context.Context) ([]Endpoint, error)
	SaveServerHistory(ctx context.Context, history []Endpoint) error
}

type Resolver struct {
	httpClient *http.Client
	store      Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: config.EndpointProbeTimeout},
		store:      store,
	}
}

// Probe reports whether the server answers its ping endpoint with 200.
func (r *Resolver) Probe(ctx context.Context, ep Endpoint) bool {
	ctx, cancel := context.WithTimeout(ctx, config.EndpointProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.RESTBase()+pingPath, nil)
	if err != nil {
		return false
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("component", "endpoint").Str("host", ep.Display()).Msg("probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Resolve parses input, probes it and records it as the current endpoint.
func (r *Resolver) Resolve(ctx context.Context, input string) (Endpoint, error) {
	ep, err := Parse(input)
	if err != nil {
		return Endpoint{}, err
	}
	return r.Use(ctx, ep)
}

// Use probes a previously known endpoint and makes it current.
func (r *Resolver) Use(ctx context.Context, ep Endpoint) (Endpoint, error) {
	if !r.Probe(ctx, ep) {
		return Endpoint{}, apperrors.New(apperrors.ErrCodeConnectivity, "Unable to reach server").
			WithDetails(map[string]string{"host": ep.Display()})
	}

	ep.LastUsed = time.Now().UTC()

	if r.store != nil {
		if err := r.store.SaveEndpoint(ctx, ep); err != nil {
			return Endpoint{}, apperrors.Storage(err)
		}
		history, err := r.store.ServerHistory(ctx)
		if err != nil {
			log.Warn().Err(err).Str("component", "endpoint").Msg("failed to load server history")
		}
		if err := r.store.SaveServerHistory(ctx, AddToHistory(history, ep)); err != nil {
			log.Warn().Err(err).Str("component", "endpoint").Msg("failed to save server history")
		}
	}

	log.Info().Str("component", "endpoint").Str("host", ep.Display()).Str("scheme", ep.Scheme).Msg("server endpoint resolved")
	return ep, nil
}

// AddToHistory puts ep first, drops older entries for the same server and keeps at most five.
func AddToHistory(history []Endpoint, ep Endpoint) []Endpoint {
	out := make([]Endpoint, 0, len(history)+1)
	out = append(out, ep)
	for _, h := range history {
		if h.SameServer(ep) {
			continue
		}
		out = append(out, h)
	}
	if len(out) > config.ServerHistoryLimit {
		out = out[:config.ServerHistoryLimit]
	}
	return out
}
