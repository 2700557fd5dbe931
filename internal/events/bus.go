package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Signals published by the agent components
const (
	TypeConnected             = "connected"
	TypeDisconnected          = "disconnected"
	TypeError                 = "error"
	TypeNeedRebind            = "need_rebind"
	TypeMaxReconnect          = "max_reconnect"
	TypeDeviceUnbound         = "device_unbound"
	TypeServerCallEnd         = "server_call_end"
	TypeFollowupRequired      = "followup_required"
	TypeRecordingUploaded     = "recording_uploaded"
	TypeRecordingUploadFailed = "recording_upload_failed"
)

const subscriberBuffer = 64

type Event struct {
	Type   string          `json:"type"`
	CallID string          `json:"callId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	At     time.Time       `json:"at"`
}

// NewEvent builds an event, encoding data as its JSON payload.
func NewEvent(eventType, callID string, data any) Event {
	ev := Event{Type: eventType, CallID: callID, At: time.Now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Error().Err(err).Str("type", eventType).Msg("failed to marshal event data")
		} else {
			ev.Data = raw
		}
	}
	return ev
}

type Subscriber struct {
	Events chan Event
	Done   chan struct{}
	types  map[string]bool
}

func (s *Subscriber) wants(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// Bus fans events out to any number of independent subscribers.
type Bus struct {
	subscribers map[*Subscriber]bool
	mu          sync.RWMutex
	closed      bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[*Subscriber]bool)}
}

// Subscribe registers a subscriber for the given event types, or all types when none are given.
func (b *Bus) Subscribe(types ...string) *Subscriber {
	sub := &Subscriber{
		Events: make(chan Event, subscriberBuffer),
		Done:   make(chan struct{}),
		types:  make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	if b.closed {
		close(sub.Done)
	} else {
		b.subscribers[sub] = true
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	log.Debug().Str("component", "events").Int("subscriberCount", count).Msg("subscriber added")
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.Done)
	}
}

// Publish delivers ev to every interested subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			log.Warn().
				Str("component", "events").
				Str("type", ev.Type).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		close(sub.Done)
	}
	b.subscribers = make(map[*Subscriber]bool)
	b.closed = true
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
