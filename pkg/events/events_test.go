package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	require.Equal(t, 1, b.SubscriberCount())

	b.Publish(&Event{Type: EventMappingUpdated, Alias: "sessions", Tier: "clustered", Key: []byte("k")})

	select {
	case ev := <-sub:
		require.Equal(t, EventMappingUpdated, ev.Type)
		require.Equal(t, "sessions", ev.Alias)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBrokerDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < 200; i++ {
		b.Publish(&Event{Type: EventMappingEvicted, Alias: "sessions"})
	}

	// Draining should not block or panic even though far more events
	// were published than the subscriber's buffer holds.
	time.Sleep(50 * time.Millisecond)
	drained := 0
	for {
		select {
		case <-sub:
			drained++
		default:
			require.LessOrEqual(t, drained, 50)
			return
		}
	}
}
