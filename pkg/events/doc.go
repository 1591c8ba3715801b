/*
Package events is an in-memory, non-blocking pub/sub bus for
CacheEvents — notifications that a key's mapping changed on some tier
of some named cache.

Publish never blocks the cache operation that triggered it: delivery
to a subscriber is best-effort, and a full subscriber buffer drops the
event rather than applying backpressure.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:  events.EventMappingUpdated,
		Alias: "sessions",
		Tier:  "clustered",
		Key:   []byte("user:42"),
	})
*/
package events
