package messaging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propshub/props-scoring-engine/internal/domain/shared"
)

func syncBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:     false,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnableMetrics: true,
	}
}

func testEvent(eventType shared.EventType, aggregateID string) shared.Event {
	return &reconstructedEvent{
		eventType:   eventType,
		aggregateID: aggregateID,
		occurredAt:  time.Now().UTC(),
		payload:     map[string]interface{}{"scope_ref": aggregateID},
	}
}

func TestInMemoryEventBus_PublishDeliversToTypedHandler(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var got []string
	err := bus.Subscribe(shared.EventScopeGradedWithWinner, func(e shared.Event) error {
		got = append(got, e.AggregateID())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(testEvent(shared.EventScopeGradedWithWinner, "pack:NBA-2025-W1")))
	require.NoError(t, bus.Publish(testEvent(shared.EventScopeGradedNoWinner, "pack:NBA-2025-W2")))

	assert.Equal(t, []string{"pack:NBA-2025-W1"}, got)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	count := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventScopeGradedWithWinner, "pack:a")))
	require.NoError(t, bus.Publish(testEvent(shared.EventMilestoneAwarded, "ach-1")))

	assert.Equal(t, 2, count)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
}

func TestInMemoryEventBus_ClosedBusRejects(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(testEvent(shared.EventScopeGradedWithWinner, "pack:a"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventScopeGradedWithWinner, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Second close is a no-op.
	assert.NoError(t, bus.Close())
}

// fakeRedisClient captures published payloads and lets the test inject
// incoming messages.
type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	incoming  chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{incoming: make(chan RedisMessage, 10)}
}

func (c *fakeRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message.(string))
	return nil
}

func (c *fakeRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	return c.incoming, nil
}

func (c *fakeRedisClient) Close() error { return nil }

func (c *fakeRedisClient) publishedEnvelopes(t *testing.T) []eventEnvelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	envelopes := make([]eventEnvelope, 0, len(c.published))
	for _, raw := range c.published {
		var env eventEnvelope
		require.NoError(t, json.Unmarshal([]byte(raw), &env))
		envelopes = append(envelopes, env)
	}
	return envelopes
}

func TestRedisEventBus_PublishGoesToRedisAndLocal(t *testing.T) {
	client := newFakeRedisClient()

	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "worker-1",
		LocalBusConfig: syncBusConfig(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	defer bus.Close()

	var local []string
	require.NoError(t, bus.Subscribe(shared.EventScopeGradedWithWinner, func(e shared.Event) error {
		local = append(local, e.AggregateID())
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent(shared.EventScopeGradedWithWinner, "pack:NBA-2025-W1")))

	assert.Equal(t, []string{"pack:NBA-2025-W1"}, local)

	envelopes := client.publishedEnvelopes(t)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "worker-1", envelopes[0].InstanceID)
	assert.Equal(t, shared.EventScopeGradedWithWinner, envelopes[0].EventType)
}

func TestRedisEventBus_IgnoresOwnMessages(t *testing.T) {
	client := newFakeRedisClient()

	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "worker-1",
		LocalBusConfig: syncBusConfig(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	defer bus.Close()

	var mu sync.Mutex
	var seen []string
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		seen = append(seen, e.AggregateID())
		mu.Unlock()
		return nil
	}))

	selfEnv, err := json.Marshal(eventEnvelope{
		InstanceID:  "worker-1",
		EventType:   shared.EventScopeGradedWithWinner,
		AggregateID: "pack:self",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	remoteEnv, err := json.Marshal(eventEnvelope{
		InstanceID:  "worker-2",
		EventType:   shared.EventScopeGradedWithWinner,
		AggregateID: "pack:remote",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	client.incoming <- RedisMessage{Payload: string(selfEnv)}
	client.incoming <- RedisMessage{Payload: string(remoteEnv)}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"pack:remote"}, seen)
}
