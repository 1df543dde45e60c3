package bus

import (
	"context"
	"path"
	"sync"

	"log/slog"
)

// MemoryBus is the in-process stand-in used when Redis is unreachable at
// startup. Fanout is only visible inside this process; each subscriber gets
// FIFO delivery through its own unbounded queue.
type MemoryBus struct {
	log *slog.Logger

	mu   sync.Mutex
	subs map[*memorySub]struct{}
}

func NewMemoryBus(log *slog.Logger) *MemoryBus {
	return &MemoryBus{log: log, subs: map[*memorySub]struct{}{}}
}

// Publish delivers the payload to every subscriber whose pattern
// glob-matches the channel.
func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := make([]*memorySub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if ok, _ := path.Match(s.pattern, channel); ok {
			s.push(Message{Channel: channel, Payload: payload})
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, pattern string) Subscription {
	s := &memorySub{
		bus:     b,
		pattern: pattern,
		wake:    make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	b.log.Debug("bus.memory.subscribed", "pattern", pattern)
	return s
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	subs := make([]*memorySub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

func (b *MemoryBus) drop(s *memorySub) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

type memorySub struct {
	bus     *MemoryBus
	pattern string
	wake    chan struct{}

	mu     sync.Mutex
	queue  []Message
	closed bool
}

func (s *memorySub) push(m Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, m)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySub) Next(ctx context.Context) (Message, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			m := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return m, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Message{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.wake:
			// re-check the queue
		}
	}
}

func (s *memorySub) Close() error {
	s.bus.drop(s)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}
