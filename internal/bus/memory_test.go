package bus

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryBusPatternDelivery(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(testLogger())
	defer b.Close()

	match := b.Subscribe(ctx, "room:*")
	other := b.Subscribe(ctx, "presence:*")

	require.NoError(t, b.Publish(ctx, "room:abc", []byte("hello")))

	msg, err := match.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "room:abc", msg.Channel)
	assert.Equal(t, []byte("hello"), msg.Payload)

	// The non-matching subscriber must see nothing.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = other.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBusFIFOPerSubscriber(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(testLogger())
	defer b.Close()

	sub := b.Subscribe(ctx, "room:*")
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(ctx, "room:r1", []byte(fmt.Sprintf("m%d", i))))
	}
	for i := 0; i < 20; i++ {
		msg, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), string(msg.Payload))
	}
}

func TestMemoryBusClosedSubscription(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus(testLogger())

	sub := b.Subscribe(ctx, "room:*")
	require.NoError(t, sub.Close())

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Publishing after unsubscribe must not panic or deliver.
	require.NoError(t, b.Publish(ctx, "room:r1", []byte("late")))
}

func TestChannelRoomID(t *testing.T) {
	assert.Equal(t, "room:abc", Channel("abc"))

	id, ok := RoomID("room:abc")
	require.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = RoomID("presence:abc")
	assert.False(t, ok)
	_, ok = RoomID("room:")
	assert.False(t, ok)
}
