package changefeed

import (
	"context"

	"go.uber.org/zap"
)

// MemoryFeed is an in-process feed backed by a buffered channel. It is only
// suitable for single-process deployments; events published while no consumer
// is draining the channel block once the buffer fills.
type MemoryFeed struct {
	ch chan Event
}

func NewMemoryFeed(buffer int) *MemoryFeed {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryFeed{ch: make(chan Event, buffer)}
}

func (f *MemoryFeed) Publish(ctx context.Context, ev Event) error {
	select {
	case f.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume dispatches events to h until ctx is canceled. Handler errors are
// logged and the event is dropped; the in-process feed has no redelivery.
func (f *MemoryFeed) Consume(ctx context.Context, h Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.ch:
			if err := h.HandleChange(ctx, ev); err != nil {
				log.Error("change handler failed",
					zap.String("event_id", ev.ID),
					zap.String("collection", ev.Collection),
					zap.String("doc_id", ev.DocID),
					zap.String("op", string(ev.Op)),
					zap.Error(err),
				)
			}
		}
	}
}
