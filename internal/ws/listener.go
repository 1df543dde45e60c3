package ws

import (
	"context"
	"errors"

	"log/slog"

	"github.com/tusharbansal19/Scratch/internal/bus"
)

// Listener is the process-wide fanout consumer: one wildcard subscription
// covering every room channel, forwarding each message to the local
// registry. Messages from this process come back through here too, which is
// what delivers a sender's events to its local peers.
type Listener struct {
	log *slog.Logger
	bus bus.Bus
	reg *Registry
}

func NewListener(log *slog.Logger, b bus.Bus, reg *Registry) *Listener {
	return &Listener{log: log, bus: b, reg: reg}
}

// Run consumes the subscription until ctx is cancelled. A bad message is
// logged and skipped; only cancellation or a closed bus ends the loop.
func (l *Listener) Run(ctx context.Context) {
	sub := l.bus.Subscribe(ctx, bus.Channel("*"))
	defer sub.Close()
	l.log.Info("fanout.listening", "pattern", bus.Channel("*"))

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, bus.ErrClosed) {
				l.log.Error("fanout.next", "err", err)
			}
			l.log.Info("fanout.stopped")
			return
		}

		roomID, ok := bus.RoomID(msg.Channel)
		if !ok {
			l.log.Debug("fanout.skip", "channel", msg.Channel)
			continue
		}
		l.reg.BroadcastLocal(roomID, msg.Payload)
	}
}
