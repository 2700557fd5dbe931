package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/endpoint"
	apperrors "github.com/openclaw/dial-agent-go/internal/errors"
	"github.com/openclaw/dial-agent-go/internal/model"
)

const (
	keyCredentials    = "credentials"
	keyBindingRevoked = "binding_revoked"
	keyEndpoint       = "server_endpoint"
	keyServerHistory  = "server_history"
	keyDeviceID       = "device_id"
	KeyCurrentCall    = "current_call"
	KeyLastEndedCall  = "last_ended_call"
)

// State is the typed view over the key-value store used by the agent components.
type State struct {
	kv       *KV
	defaults model.Credentials
	mirror   Mirror
}

// NewState returns a State. defaults supply credentials from the environment
// until a binding is stored or revoked.
func NewState(kv *KV, defaults model.Credentials) *State {
	return &State{kv: kv, defaults: defaults}
}

func (s *State) SetMirror(m Mirror) {
	s.mirror = m
}

// Credentials returns the stored binding, falling back to the configured one.
// A missing connection URL is derived from the stored endpoint. After the
// server revokes the device nothing is returned until a new binding is saved.
func (s *State) Credentials(ctx context.Context) (model.Credentials, error) {
	var revoked bool
	if _, err := s.kv.Get(ctx, keyBindingRevoked, &revoked); err != nil {
		return model.Credentials{}, apperrors.Storage(err)
	}
	if revoked {
		return model.Credentials{}, nil
	}

	creds := s.defaults
	var stored model.Credentials
	found, err := s.kv.Get(ctx, keyCredentials, &stored)
	if err != nil {
		return model.Credentials{}, apperrors.Storage(err)
	}
	if found {
		creds = stored
	}

	if creds.ConnectionURL == "" {
		ep, ok, err := s.Endpoint(ctx)
		if err != nil {
			return model.Credentials{}, err
		}
		if ok {
			creds.ConnectionURL = ep.BaseConnectionURL()
		}
	}
	return creds, nil
}

func (s *State) SaveCredentials(ctx context.Context, creds model.Credentials) error {
	if err := s.kv.Set(ctx, keyCredentials, creds); err != nil {
		return apperrors.Storage(err)
	}
	if err := s.kv.Delete(ctx, keyBindingRevoked); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// ClearBinding drops the stored credentials and blocks the configured fallback.
func (s *State) ClearBinding(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keyCredentials); err != nil {
		return apperrors.Storage(err)
	}
	if err := s.kv.Set(ctx, keyBindingRevoked, true); err != nil {
		return apperrors.Storage(err)
	}
	log.Info().Str("component", "store").Msg("device binding cleared")
	return nil
}

// DeviceID returns configured when set. Otherwise it returns the id generated on
// first start, creating it if needed.
func (s *State) DeviceID(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var id string
	found, err := s.kv.Get(ctx, keyDeviceID, &id)
	if err != nil {
		return "", apperrors.Storage(err)
	}
	if found && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.kv.Set(ctx, keyDeviceID, id); err != nil {
		return "", apperrors.Storage(err)
	}
	log.Info().Str("component", "store").Str("deviceId", id).Msg("generated device id")
	return id, nil
}

func (s *State) Endpoint(ctx context.Context) (endpoint.Endpoint, bool, error) {
	var ep endpoint.Endpoint
	found, err := s.kv.Get(ctx, keyEndpoint, &ep)
	if err != nil {
		return endpoint.Endpoint{}, false, apperrors.Storage(err)
	}
	return ep, found, nil
}

func (s *State) SaveEndpoint(ctx context.Context, ep endpoint.Endpoint) error {
	if err := s.kv.Set(ctx, keyEndpoint, ep); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

func (s *State) ServerHistory(ctx context.Context) ([]endpoint.Endpoint, error) {
	var history []endpoint.Endpoint
	if _, err := s.kv.Get(ctx, keyServerHistory, &history); err != nil {
		return nil, apperrors.Storage(err)
	}
	return history, nil
}

func (s *State) SaveServerHistory(ctx context.Context, history []endpoint.Endpoint) error {
	if err := s.kv.Set(ctx, keyServerHistory, history); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// APIBase returns the REST base of the stored endpoint, or "" when none is stored.
func (s *State) APIBase(ctx context.Context) (string, error) {
	ep, ok, err := s.Endpoint(ctx)
	if err != nil || !ok {
		return "", err
	}
	return ep.RESTBase(), nil
}

func (s *State) AuthToken(ctx context.Context) (string, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return creds.AuthToken, nil
}

func (s *State) CurrentCall(ctx context.Context) (*model.CallSession, error) {
	var session model.CallSession
	found, err := s.kv.Get(ctx, KeyCurrentCall, &session)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}

func (s *State) SaveCurrentCall(ctx context.Context, session model.CallSession) error {
	return s.saveSnapshot(ctx, KeyCurrentCall, session)
}

func (s *State) ClearCurrentCall(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyCurrentCall); err != nil {
		return apperrors.Storage(err)
	}
	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, KeyCurrentCall); err != nil {
			log.Warn().Err(err).Str("component", "store").Msg("failed to remove mirrored snapshot")
		}
	}
	return nil
}

func (s *State) LastEndedCall(ctx context.Context) (*model.EndedCall, error) {
	var ended model.EndedCall
	found, err := s.kv.Get(ctx, KeyLastEndedCall, &ended)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if !found {
		return nil, nil
	}
	return &ended, nil
}

func (s *State) SaveLastEndedCall(ctx context.Context, ended model.EndedCall) error {
	return s.saveSnapshot(ctx, KeyLastEndedCall, ended)
}

func (s *State) saveSnapshot(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("component", "store").Str("key", key).Msg("failed to encode snapshot")
		return apperrors.Storage(err)
	}
	if err := s.kv.Set(ctx, key, json.RawMessage(raw)); err != nil {
		return apperrors.Storage(err)
	}
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.Put(ctx, key, raw); err != nil {
		log.Warn().Err(err).Str("component", "store").Str("key", key).Msg("failed to mirror snapshot")
	}
	return nil
}
