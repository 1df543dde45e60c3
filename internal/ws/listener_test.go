package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tusharbansal19/Scratch/internal/bus"
)

func TestListenerForwardsBusMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemoryBus(testLogger())
	reg := NewRegistry(testLogger())
	c := NewConn(nil, "r1")
	reg.Connect(c, "r1")

	l := NewListener(testLogger(), b, reg)
	go l.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let the subscription register

	// Relay is verbatim, even for payloads that are not valid events.
	require.NoError(t, b.Publish(ctx, bus.Channel("r1"), []byte("not-json")))
	assert.Equal(t, "not-json", string(recv(t, c)))

	// Messages on channels outside the room namespace are skipped.
	require.NoError(t, b.Publish(ctx, "presence:r1", []byte("x")))
	require.NoError(t, b.Publish(ctx, bus.Channel("r1"), []byte("after")))
	assert.Equal(t, "after", string(recv(t, c)))
}

func TestListenerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := bus.NewMemoryBus(testLogger())
	reg := NewRegistry(testLogger())

	done := make(chan struct{})
	go func() {
		NewListener(testLogger(), b, reg).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
