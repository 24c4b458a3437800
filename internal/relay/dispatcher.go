package relay

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"tgrelay/internal/task"
)

// Config carries the dispatch pacing knobs. It is an explicit value passed
// at construction; there is no ambient package state.
type Config struct {
	// MinDelay/MaxDelay bound the uniform-random pause between successive
	// items, so the request stream has no fixed-interval signature.
	MinDelay time.Duration
	MaxDelay time.Duration

	// BatchSize bounds how many identifiers one Fetch call carries.
	BatchSize int

	// BatchPause is the extra pause after each fully processed batch.
	BatchPause time.Duration

	// ThrottleMargin is added on top of the remote's retry-after before
	// resuming.
	ThrottleMargin time.Duration

	// Filter, when set, decides which fetched items are relayed.
	Filter Filter
}

func (c Config) withDefaults() Config {
	if c.MinDelay <= 0 {
		c.MinDelay = 2 * time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay + 3*time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = task.DefaultBatchSize
	}
	if c.BatchPause <= 0 {
		c.BatchPause = time.Second
	}
	if c.ThrottleMargin <= 0 {
		c.ThrottleMargin = 5 * time.Second
	}
	return c
}

// Events receives dispatch progress. The report package implements it; the
// dispatcher never logs directly.
type Events interface {
	TaskStarted(index int, d task.Descriptor)
	ItemDone(res Result)
	ThrottleWait(itemID int64, wait time.Duration)
	TaskCompleted(index int, d task.Descriptor)
}

// Dispatcher executes expanded work items strictly one at a time against the
// client. No two items are ever in flight concurrently; bursty concurrent
// calls are the platform's primary abuse trigger.
type Dispatcher struct {
	client Client
	cfg    Config
	events Events
	stats  *Stats

	// sleep is swappable so tests can observe requested pauses without
	// waiting them out.
	sleep func(context.Context, time.Duration) error
}

func NewDispatcher(client Client, cfg Config, events Events) *Dispatcher {
	return &Dispatcher{
		client: client,
		cfg:    cfg.withDefaults(),
		events: events,
		stats:  &Stats{StartedAt: time.Now()},
		sleep:  sleepCtx,
	}
}

// Stats exposes the run accumulator. Read it after the last Dispatch call.
func (d *Dispatcher) Stats() *Stats { return d.stats }

// Dispatch consumes one descriptor's work items in order. It returns an
// error only when ctx is cancelled; every per-item failure is recorded and
// processing continues with the next item.
func (d *Dispatcher) Dispatch(ctx context.Context, index int, src, dst Endpoint, dsc task.Descriptor) error {
	d.events.TaskStarted(index, dsc)

	var err error
	switch dsc.Kind {
	case task.KindMessage:
		err = d.dispatchMessage(ctx, dst, dsc)
	case task.KindRange:
		err = d.dispatchRange(ctx, src, dst, dsc)
	}
	if err != nil {
		return err
	}

	d.events.TaskCompleted(index, dsc)
	return nil
}

// Finish stamps the end of the run and returns the final stats.
func (d *Dispatcher) Finish() *Stats {
	d.stats.FinishedAt = time.Now()
	return d.stats
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, dst Endpoint, dsc task.Descriptor) error {
	err := d.client.SendText(ctx, dst, dsc.Content)
	return d.recordRelay(ctx, 0, err)
}

func (d *Dispatcher) dispatchRange(ctx context.Context, src, dst Endpoint, dsc task.Descriptor) error {
	it := dsc.Batches(d.cfg.BatchSize)
	for {
		batch, ok := it.Next()
		if !ok {
			return nil
		}

		items, err := d.fetchBatch(ctx, src, batch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The whole lookup failed; every id in the batch is an error,
			// but the run goes on. A remote call still happened, so the
			// pacing delay applies before the next lookup.
			for _, id := range batch {
				d.finishItem(Result{ItemID: id, Outcome: OutcomeFailed, Err: err})
			}
			if serr := d.sleep(ctx, d.itemDelay()); serr != nil {
				return serr
			}
			continue
		}

		for i, id := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			item := items[i]
			if item == nil {
				d.finishItem(Result{ItemID: id, Outcome: OutcomeSkippedNotFound})
				continue
			}
			if d.cfg.Filter != nil && !d.cfg.Filter(*item) {
				d.finishItem(Result{ItemID: id, Outcome: OutcomeSkippedFiltered})
				continue
			}

			err := d.client.Relay(ctx, src, item, dst)
			if err := d.recordRelay(ctx, id, err); err != nil {
				return err
			}
		}

		if it.Remaining() > 0 {
			if err := d.sleep(ctx, d.cfg.BatchPause); err != nil {
				return err
			}
		}
	}
}

// fetchBatch looks up one identifier batch, honoring a throttle hint with a
// single retry. Nothing has been delivered from the batch yet, so retrying
// the same lookup cannot duplicate items.
func (d *Dispatcher) fetchBatch(ctx context.Context, src Endpoint, ids []int64) ([]*Item, error) {
	items, err := d.client.Fetch(ctx, src, ids)
	if err == nil {
		return d.aligned(items, len(ids)), nil
	}
	retryAfter, ok := AsThrottled(err)
	if !ok {
		return nil, err
	}
	d.events.ThrottleWait(ids[0], retryAfter+d.cfg.ThrottleMargin)
	if serr := d.sleep(ctx, retryAfter+d.cfg.ThrottleMargin); serr != nil {
		return nil, serr
	}
	items, err = d.client.Fetch(ctx, src, ids)
	if err != nil {
		return nil, err
	}
	return d.aligned(items, len(ids)), nil
}

// aligned pads a short fetch result with nil slots so indexing stays
// positional with the requested ids.
func (d *Dispatcher) aligned(items []*Item, n int) []*Item {
	for len(items) < n {
		items = append(items, nil)
	}
	return items
}

// recordRelay classifies one relay/send attempt, applies the throttle wait
// or the inter-item delay, and keeps the run going. The returned error is
// non-nil only on context cancellation.
func (d *Dispatcher) recordRelay(ctx context.Context, id int64, err error) error {
	switch {
	case err == nil:
		d.finishItem(Result{ItemID: id, Outcome: OutcomeDelivered})

	case errors.Is(err, ErrNotFound):
		d.finishItem(Result{ItemID: id, Outcome: OutcomeSkippedNotFound, Err: err})

	default:
		if retryAfter, ok := AsThrottled(err); ok {
			// Skip-forward policy: the throttled item is recorded and never
			// retried, so a delivered item can never be duplicated.
			wait := retryAfter + d.cfg.ThrottleMargin
			d.finishItem(Result{ItemID: id, Outcome: OutcomeThrottled, Err: err, RetryAfter: retryAfter})
			d.events.ThrottleWait(id, wait)
			return d.sleep(ctx, wait)
		}
		d.finishItem(Result{ItemID: id, Outcome: OutcomeFailed, Err: err})
	}

	return d.sleep(ctx, d.itemDelay())
}

func (d *Dispatcher) finishItem(res Result) {
	d.stats.record(res.Outcome)
	d.events.ItemDone(res)
}

// itemDelay draws the inter-item pause uniformly from [MinDelay, MaxDelay].
func (d *Dispatcher) itemDelay() time.Duration {
	span := d.cfg.MaxDelay - d.cfg.MinDelay
	if span <= 0 {
		return d.cfg.MinDelay
	}
	return d.cfg.MinDelay + time.Duration(rand.Int64N(int64(span)+1))
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
