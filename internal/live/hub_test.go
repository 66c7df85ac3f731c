package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KlmnCapital/simulation-engine/internal/core"
	"github.com/KlmnCapital/simulation-engine/internal/engine"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("test-client")
	hub.Register(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	hub.Broadcast(Message{Type: TypeTick, Data: "payload"})

	select {
	case msg := <-client.GetSendChan():
		assert.Equal(t, TypeTick, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message, got none")
	}

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHubDropsSlowClientOnFullBuffer(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("slow-client")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	// Fill the client's 256-deep buffer without draining it. Some broadcasts
	// may themselves be dropped if the hub's own channel is momentarily full,
	// so send comfortably more than the buffer depth.
	for i := 0; i < 2000; i++ {
		hub.Broadcast(Message{Type: TypeTick, Data: i})
	}

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond,
		"a client that never drains its buffer should eventually be unregistered")
}

func TestHubOnTickThrottlesExcessFrames(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := NewClient("viewer")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	// Burst capacity is 5; sending far more frames instantly should still
	// leave most of them dropped rather than delivered.
	for i := 0; i < 50; i++ {
		hub.OnTick(engine.TickFrame{Timestamp: core.TimeStamp(i)})
	}

	delivered := 0
	timeout := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case <-client.GetSendChan():
			delivered++
		case <-timeout:
			break drain
		}
	}

	assert.Less(t, delivered, 50, "the tick limiter should have dropped most of an instant burst")
}
