package bus

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/tusharbansal19/Scratch/internal/app"
)

// ErrClosed is returned by Subscription.Next once the subscription is gone.
var ErrClosed = errors.New("bus: subscription closed")

// Message is one delivered pub/sub payload with the channel it arrived on.
type Message struct {
	Channel string
	Payload []byte
}

// Bus fans messages out to pattern subscribers. The Redis implementation is
// visible across all server instances; the in-memory fallback is process-local.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, pattern string) Subscription
	Close() error
}

// Subscription is a stream of messages consumed by exactly one reader.
type Subscription interface {
	// Next blocks until a message arrives, the context is cancelled, or the
	// subscription is closed.
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Dial probes Redis and falls back to the in-memory bus when it is
// unreachable, so the server still starts with single-instance fanout.
func Dial(ctx context.Context, cfg app.Config, log *slog.Logger) Bus {
	b, err := DialRedis(ctx, cfg, log)
	if err != nil {
		log.Warn("bus.fallback", "err", err, "addr", cfg.RedisAddr)
		return NewMemoryBus(log)
	}
	log.Info("bus.redis.connected", "addr", cfg.RedisAddr)
	return b
}

// Channel namespacing for room pub/sub
func Channel(roomID string) string { return "room:" + roomID }

// RoomID recovers the room id from a channel name produced by Channel.
func RoomID(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, "room:")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
