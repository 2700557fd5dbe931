package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-sub.Events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus(t *testing.T) {
	t.Run("delivers to every subscriber", func(t *testing.T) {
		bus := NewBus()
		defer bus.Close()

		a := bus.Subscribe()
		b := bus.Subscribe()

		bus.Publish(NewEvent(TypeConnected, "", nil))

		assert.Equal(t, TypeConnected, receive(t, a).Type)
		assert.Equal(t, TypeConnected, receive(t, b).Type)
	})

	t.Run("filters by type", func(t *testing.T) {
		bus := NewBus()
		defer bus.Close()

		sub := bus.Subscribe(TypeMaxReconnect)

		bus.Publish(NewEvent(TypeConnected, "", nil))
		bus.Publish(NewEvent(TypeMaxReconnect, "", nil))

		assert.Equal(t, TypeMaxReconnect, receive(t, sub).Type)
		assert.Empty(t, sub.Events)
	})

	t.Run("encodes payload", func(t *testing.T) {
		bus := NewBus()
		defer bus.Close()

		sub := bus.Subscribe()
		bus.Publish(NewEvent(TypeNeedRebind, "", map[string]string{"reason": "missing_token"}))

		ev := receive(t, sub)
		var data map[string]string
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.Equal(t, "missing_token", data["reason"])
		assert.False(t, ev.At.IsZero())
	})

	t.Run("unsubscribe closes done", func(t *testing.T) {
		bus := NewBus()
		defer bus.Close()

		sub := bus.Subscribe()
		assert.Equal(t, 1, bus.SubscriberCount())

		bus.Unsubscribe(sub)
		assert.Equal(t, 0, bus.SubscriberCount())

		_, open := <-sub.Done
		assert.False(t, open)

		bus.Unsubscribe(sub)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		bus := NewBus()
		defer bus.Close()

		sub := bus.Subscribe()
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish(NewEvent(TypeError, "", nil))
		}
		assert.Len(t, sub.Events, subscriberBuffer)
	})

	t.Run("subscribe after close is already done", func(t *testing.T) {
		bus := NewBus()
		bus.Close()

		sub := bus.Subscribe()
		_, open := <-sub.Done
		assert.False(t, open)
	})
}
