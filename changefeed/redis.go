package changefeed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	streamMaxLen  = 100_000
	claimMinIdle  = time.Minute
	readBlockTime = 5 * time.Second
)

// RedisFeed publishes change events to a Redis stream and consumes them
// through a consumer group, so events survive process restarts and failed
// deliveries stay pending until acknowledged.
type RedisFeed struct {
	rdb    *redis.Client
	stream string
	group  string
}

func NewRedisFeed(rdb *redis.Client, stream, group string) *RedisFeed {
	if stream == "" {
		stream = "changefeed:documents"
	}
	if group == "" {
		group = "reconciler"
	}
	return &RedisFeed{rdb: rdb, stream: stream, group: group}
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"event": body},
	}).Err()
}

// Consume reads events from the stream as part of the consumer group and
// dispatches them to h until ctx is canceled. Successfully handled events are
// acknowledged; failed ones stay pending and are re-claimed after claimMinIdle.
func (f *RedisFeed) Consume(ctx context.Context, consumer string, h Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := f.rdb.XGroupCreateMkStream(ctx, f.stream, f.group, "0").Err(); err != nil && !isBusyGroup(err) {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.claimStale(ctx, consumer, h, log)

		streams, err := f.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    f.group,
			Consumer: consumer,
			Streams:  []string{f.stream, ">"},
			Count:    32,
			Block:    readBlockTime,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("changefeed read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, str := range streams {
			for _, msg := range str.Messages {
				f.dispatch(ctx, msg, h, log)
			}
		}
	}
}

// claimStale takes over messages another consumer failed to acknowledge.
func (f *RedisFeed) claimStale(ctx context.Context, consumer string, h Handler, log *zap.Logger) {
	msgs, _, err := f.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   f.stream,
		Group:    f.group,
		Consumer: consumer,
		MinIdle:  claimMinIdle,
		Start:    "0-0",
		Count:    32,
	}).Result()
	if err != nil && err != redis.Nil {
		return
	}
	for _, msg := range msgs {
		f.dispatch(ctx, msg, h, log)
	}
}

func (f *RedisFeed) dispatch(ctx context.Context, msg redis.XMessage, h Handler, log *zap.Logger) {
	raw, _ := msg.Values["event"].(string)
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		// Malformed entries can never succeed; ack and drop.
		log.Error("changefeed entry malformed", zap.String("msg_id", msg.ID), zap.Error(err))
		_ = f.rdb.XAck(ctx, f.stream, f.group, msg.ID).Err()
		return
	}
	if err := h.HandleChange(ctx, ev); err != nil {
		log.Error("change handler failed",
			zap.String("event_id", ev.ID),
			zap.String("collection", ev.Collection),
			zap.String("doc_id", ev.DocID),
			zap.String("op", string(ev.Op)),
			zap.Error(err),
		)
		return
	}
	_ = f.rdb.XAck(ctx, f.stream, f.group, msg.ID).Err()
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
