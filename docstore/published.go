package docstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kehilla-app/accounts/changefeed"
)

// Published wraps a Store and publishes a change event after every
// successful write to a watched collection. It is the change-data-capture
// layer that drives reactive consumers.
type Published struct {
	Store
	feed    changefeed.Publisher
	watched map[string]bool
}

func NewPublished(base Store, feed changefeed.Publisher, collections ...string) *Published {
	w := make(map[string]bool, len(collections))
	for _, c := range collections {
		w[c] = true
	}
	return &Published{Store: base, feed: feed, watched: w}
}

func (p *Published) Set(ctx context.Context, collection, id string, doc []byte) error {
	if !p.watched[collection] {
		return p.Store.Set(ctx, collection, id, doc)
	}
	before, found, err := p.Store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := p.Store.Set(ctx, collection, id, doc); err != nil {
		return err
	}
	op := changefeed.OpCreated
	if found {
		op = changefeed.OpUpdated
	}
	return p.publish(ctx, collection, id, op, before, doc)
}

func (p *Published) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	if !p.watched[collection] {
		return p.Store.Update(ctx, collection, id, fn)
	}
	var before, after []byte
	var existed, changed bool
	err := p.Store.Update(ctx, collection, id, func(current []byte, found bool) ([]byte, error) {
		next, err := fn(current, found)
		if err != nil {
			return nil, err
		}
		before, existed = current, found
		after, changed = next, true
		return next, nil
	})
	if err != nil || !changed {
		return err
	}
	switch {
	case after == nil && !existed:
		return nil
	case after == nil:
		return p.publish(ctx, collection, id, changefeed.OpDeleted, before, nil)
	case !existed:
		return p.publish(ctx, collection, id, changefeed.OpCreated, nil, after)
	default:
		return p.publish(ctx, collection, id, changefeed.OpUpdated, before, after)
	}
}

func (p *Published) Delete(ctx context.Context, collection, id string) error {
	if !p.watched[collection] {
		return p.Store.Delete(ctx, collection, id)
	}
	before, found, err := p.Store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := p.Store.Delete(ctx, collection, id); err != nil {
		return err
	}
	if !found {
		return nil
	}
	return p.publish(ctx, collection, id, changefeed.OpDeleted, before, nil)
}

func (p *Published) publish(ctx context.Context, collection, id string, op changefeed.Op, before, after []byte) error {
	if p.feed == nil {
		return nil
	}
	return p.feed.Publish(ctx, changefeed.Event{
		ID:         uuid.NewString(),
		Collection: collection,
		DocID:      id,
		Op:         op,
		Before:     before,
		After:      after,
		At:         time.Now().UTC(),
	})
}
