package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tgrelay/internal/relay"
	"tgrelay/internal/task"
)

// Client is the surface the sender needs from the platform client.
// withExplanation=false requests the reduced payload of the fallback path.
type Client interface {
	SendQuiz(ctx context.Context, dst relay.Endpoint, e Entry, tag string, withExplanation bool) error
	SendText(ctx context.Context, dst relay.Endpoint, text string) error
}

// explanationDroppedNote is the clearly marked supplementary message sent
// after a reduced-payload quiz, so readers know the explanation exists but
// did not fit.
const explanationDroppedNote = "ℹ️ Note: the explanation for the previous poll was removed because it was too long."

// Sender publishes deck entries sequentially under the same throttle
// discipline as the relay dispatcher: fixed inter-entry delay, suspend on
// flood control, per-entry failure isolation.
type Sender struct {
	client Client
	events relay.Events

	tag    string
	delay  time.Duration
	margin time.Duration

	stats *relay.Stats

	sleep func(context.Context, time.Duration) error
}

func NewSender(client Client, events relay.Events, tag string, delay, margin time.Duration) *Sender {
	if delay <= 0 {
		delay = 4 * time.Second
	}
	if margin <= 0 {
		margin = 5 * time.Second
	}
	return &Sender{
		client: client,
		events: events,
		tag:    tag,
		delay:  delay,
		margin: margin,
		stats:  &relay.Stats{StartedAt: time.Now()},
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendAll publishes every entry in order. It returns an error only on
// context cancellation; per-entry failures are recorded and skipped past.
func (s *Sender) SendAll(ctx context.Context, dst relay.Endpoint, entries []Entry) (*relay.Stats, error) {
	for i, e := range entries {
		if ctx.Err() != nil {
			return s.finish(), ctx.Err()
		}
		dsc := describeEntry(e)
		s.events.TaskStarted(i, dsc)

		err := s.sendOne(ctx, dst, e)
		res := relay.Result{ItemID: int64(i + 1)}
		switch {
		case err == nil:
			res.Outcome = relay.OutcomeDelivered
		default:
			if retryAfter, ok := relay.AsThrottled(err); ok {
				res.Outcome = relay.OutcomeThrottled
				res.Err = err
				res.RetryAfter = retryAfter
				s.record(res)
				s.events.ThrottleWait(res.ItemID, retryAfter+s.margin)
				if serr := s.sleep(ctx, retryAfter+s.margin); serr != nil {
					return s.finish(), serr
				}
				continue
			}
			res.Outcome = relay.OutcomeFailed
			res.Err = err
		}
		s.record(res)
		s.events.TaskCompleted(i, dsc)

		if i < len(entries)-1 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return s.finish(), err
			}
		}
	}
	return s.finish(), nil
}

// sendOne performs the two-phase send: full payload first, then the reduced
// payload plus a marked note when the platform rejects the size. There is no
// rollback between the phases; each phase is at-most-once.
func (s *Sender) sendOne(ctx context.Context, dst relay.Endpoint, e Entry) error {
	if e.IsMessage() {
		return s.client.SendText(ctx, dst, e.Text)
	}

	err := s.client.SendQuiz(ctx, dst, e, s.tag, true)
	if err == nil || e.Explanation == "" || !errors.Is(err, relay.ErrPayloadTooLarge) {
		return err
	}

	if err := s.client.SendQuiz(ctx, dst, e, s.tag, false); err != nil {
		return err
	}
	return s.client.SendText(ctx, dst, explanationDroppedNote)
}

func (s *Sender) record(res relay.Result) {
	switch res.Outcome {
	case relay.OutcomeDelivered:
		s.stats.Delivered++
	case relay.OutcomeThrottled:
		s.stats.Throttled++
	case relay.OutcomeFailed:
		s.stats.Failed++
	}
	s.events.ItemDone(res)
}

func (s *Sender) finish() *relay.Stats {
	if s.stats.FinishedAt.IsZero() {
		s.stats.FinishedAt = time.Now()
	}
	return s.stats
}

func describeEntry(e Entry) task.Descriptor {
	if e.IsMessage() {
		return task.Descriptor{Kind: task.KindMessage, Content: e.Text}
	}
	return task.Descriptor{Kind: task.KindMessage, Content: fmt.Sprintf("quiz: %s", e.Question)}
}
