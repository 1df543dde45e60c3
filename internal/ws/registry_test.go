package ws

import (
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

func recv(t *testing.T, c *Conn) []byte {
	t.Helper()
	select {
	case b := <-c.out:
		return b
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestRegistryBroadcastIsRoomScoped(t *testing.T) {
	reg := NewRegistry(testLogger())
	a := NewConn(nil, "r1")
	b := NewConn(nil, "r1")
	other := NewConn(nil, "r2")
	reg.Connect(a, "r1")
	reg.Connect(b, "r1")
	reg.Connect(other, "r2")

	reg.BroadcastLocal("r1", []byte("stroke"))

	assert.Equal(t, "stroke", string(recv(t, a)))
	assert.Equal(t, "stroke", string(recv(t, b)))
	select {
	case m := <-other.out:
		t.Fatalf("unexpected delivery to other room: %q", m)
	default:
	}
}

func TestRegistryBroadcastOrderPerConnection(t *testing.T) {
	reg := NewRegistry(testLogger())
	c := NewConn(nil, "r1")
	reg.Connect(c, "r1")

	reg.BroadcastLocal("r1", []byte("1"))
	reg.BroadcastLocal("r1", []byte("2"))
	reg.BroadcastLocal("r1", []byte("3"))

	for _, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, string(recv(t, c)))
	}
}

func TestRegistrySlowConnectionDoesNotBlockOthers(t *testing.T) {
	reg := NewRegistry(testLogger())
	slow := NewConn(nil, "r1")
	fast := NewConn(nil, "r1")
	reg.Connect(slow, "r1")
	reg.Connect(fast, "r1")

	// Saturate the slow connection's buffer.
	for slow.Send([]byte("fill")) {
	}

	reg.BroadcastLocal("r1", []byte("stroke"))

	// Fast one still got the message; slow one stays connected.
	got := false
	for len(fast.out) > 0 {
		if string(<-fast.out) == "stroke" {
			got = true
		}
	}
	assert.True(t, got)
	assert.Contains(t, reg.rooms["r1"], slow)
}

func TestRegistryLivenessLifecycle(t *testing.T) {
	reg := NewRegistry(testLogger())
	c := NewConn(nil, "r1")

	// Unknown room disconnect is a no-op.
	reg.Disconnect(c, "ghost")
	assert.Empty(t, reg.IdleSince())

	reg.Connect(c, "r1")
	assert.Empty(t, reg.IdleSince())

	before := time.Now()
	reg.Disconnect(c, "r1")
	idle := reg.IdleSince()
	require.Contains(t, idle, "r1")
	assert.WithinRange(t, idle["r1"], before, time.Now())

	// Reconnect clears the record.
	reg.Connect(c, "r1")
	assert.Empty(t, reg.IdleSince())

	// Room with a second connection never goes idle on one disconnect.
	d := NewConn(nil, "r1")
	reg.Connect(d, "r1")
	reg.Disconnect(c, "r1")
	assert.Empty(t, reg.IdleSince())
	reg.Disconnect(d, "r1")
	assert.Contains(t, reg.IdleSince(), "r1")

	reg.ClearIdle("r1")
	assert.Empty(t, reg.IdleSince())
}
