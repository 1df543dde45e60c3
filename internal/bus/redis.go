package bus

import (
	"context"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tusharbansal19/Scratch/internal/app"
)

type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

// DialRedis connects to redis and verifies connectivity
func DialRedis(ctx context.Context, cfg app.Config, log *slog.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisBus{rdb: rdb, log: log}, nil
}

// Publish sends the raw payload on a channel. Payloads are relayed
// byte-for-byte; the bus never inspects them.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a pattern subscription (PSUBSCRIBE semantics).
func (b *RedisBus) Subscribe(ctx context.Context, pattern string) Subscription {
	ps := b.rdb.PSubscribe(ctx, pattern)
	return &redisSub{ps: ps, ch: ps.Channel()}
}

// Close shuts down the redis connection
func (b *RedisBus) Close() error { return b.rdb.Close() }

type redisSub struct {
	ps *redis.PubSub
	ch <-chan *redis.Message
}

func (s *redisSub) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return Message{}, ErrClosed
		}
		return Message{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
	}
}

func (s *redisSub) Close() error { return s.ps.Close() }
