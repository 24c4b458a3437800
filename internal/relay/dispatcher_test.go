package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"tgrelay/internal/task"
)

type fakeClient struct {
	kinds     map[int64]ItemKind // present key = item exists
	relayErrs map[int64]error
	fetchErrs []error // consumed one per Fetch call

	fetchCalls [][]int64
	relayed    []int64
	sent       []string
}

func (f *fakeClient) Resolve(_ context.Context, ref string) (Endpoint, error) {
	return Endpoint{ID: 1, Ref: ref}, nil
}

func (f *fakeClient) Fetch(_ context.Context, _ Endpoint, ids []int64) ([]*Item, error) {
	f.fetchCalls = append(f.fetchCalls, append([]int64(nil), ids...))
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]*Item, len(ids))
	for i, id := range ids {
		if kind, ok := f.kinds[id]; ok {
			out[i] = &Item{ID: id, Kind: kind}
		}
	}
	return out, nil
}

func (f *fakeClient) Relay(_ context.Context, _ Endpoint, it *Item, _ Endpoint) error {
	if err := f.relayErrs[it.ID]; err != nil {
		return err
	}
	f.relayed = append(f.relayed, it.ID)
	return nil
}

func (f *fakeClient) SendText(_ context.Context, _ Endpoint, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fakeEvents struct {
	results  []Result
	waits    []time.Duration
	started  int
	finished int
}

func (e *fakeEvents) TaskStarted(int, task.Descriptor) {
	e.started++
}

func (e *fakeEvents) ItemDone(res Result) {
	e.results = append(e.results, res)
}

func (e *fakeEvents) ThrottleWait(_ int64, w time.Duration) {
	e.waits = append(e.waits, w)
}

func (e *fakeEvents) TaskCompleted(int, task.Descriptor) {
	e.finished++
}

func newTestDispatcher(client Client, cfg Config, events Events) (*Dispatcher, *[]time.Duration) {
	d := NewDispatcher(client, cfg, events)
	sleeps := &[]time.Duration{}
	d.sleep = func(_ context.Context, dur time.Duration) error {
		*sleeps = append(*sleeps, dur)
		return nil
	}
	return d, sleeps
}

func testConfig() Config {
	return Config{
		MinDelay:       2 * time.Second,
		MaxDelay:       5 * time.Second,
		BatchSize:      100,
		BatchPause:     time.Second,
		ThrottleMargin: 5 * time.Second,
	}
}

func TestDispatchEndToEnd(t *testing.T) {
	t.Parallel()
	client := &fakeClient{kinds: map[int64]ItemKind{10: ItemPoll, 12: ItemText}}
	events := &fakeEvents{}
	cfg := testConfig()
	cfg.Filter = PollsOnly
	d, _ := newTestDispatcher(client, cfg, events)

	src := Endpoint{ID: 1}
	dst := Endpoint{ID: 2}
	descs := []task.Descriptor{
		{Kind: task.KindRange, Start: 10, End: 12},
		{Kind: task.KindMessage, Content: "hello"},
	}
	for i, dsc := range descs {
		if err := d.Dispatch(context.Background(), i, src, dst, dsc); err != nil {
			t.Fatalf("Dispatch(%d): %v", i, err)
		}
	}
	stats := d.Finish()

	want := []Outcome{OutcomeDelivered, OutcomeSkippedNotFound, OutcomeSkippedFiltered, OutcomeDelivered}
	if len(events.results) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(events.results), len(want), events.results)
	}
	for i, res := range events.results {
		if res.Outcome != want[i] {
			t.Fatalf("result %d outcome = %s, want %s", i, res.Outcome, want[i])
		}
	}
	if events.results[0].ItemID != 10 || events.results[1].ItemID != 11 || events.results[2].ItemID != 12 {
		t.Fatalf("unexpected item ids: %+v", events.results)
	}
	if stats.Delivered != 2 || stats.Skipped() != 2 || stats.Errors() != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(client.sent) != 1 || client.sent[0] != "hello" {
		t.Fatalf("sent = %v", client.sent)
	}
	if stats.FinishedAt.Before(stats.StartedAt) {
		t.Fatal("finished before started")
	}
}

func TestDispatchThrottleSkipsForward(t *testing.T) {
	t.Parallel()
	throttle := Throttled(errors.New("flood wait"), 10*time.Second)
	client := &fakeClient{
		kinds:     map[int64]ItemKind{1: ItemText, 2: ItemText},
		relayErrs: map[int64]error{1: throttle},
	}
	events := &fakeEvents{}
	d, sleeps := newTestDispatcher(client, testConfig(), events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 2}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if events.results[0].Outcome != OutcomeThrottled {
		t.Fatalf("item 1 outcome = %s, want throttled", events.results[0].Outcome)
	}
	if events.results[0].RetryAfter != 10*time.Second {
		t.Fatalf("retry-after = %v", events.results[0].RetryAfter)
	}
	// The throttled item is never marked delivered and never retried.
	for _, id := range client.relayed {
		if id == 1 {
			t.Fatal("throttled item was relayed")
		}
	}
	if events.results[1].Outcome != OutcomeDelivered || events.results[1].ItemID != 2 {
		t.Fatalf("item 2 result = %+v", events.results[1])
	}
	// The suspension covers retry-after plus the safety margin.
	if len(*sleeps) == 0 || (*sleeps)[0] < 15*time.Second {
		t.Fatalf("throttle sleep = %v, want >= 15s", *sleeps)
	}
	if len(events.waits) != 1 || events.waits[0] != 15*time.Second {
		t.Fatalf("throttle waits = %v", events.waits)
	}
	if d.Stats().Errors() != 1 || d.Stats().Delivered != 1 {
		t.Fatalf("stats = %+v", d.Stats())
	}
}

func TestDispatchInterItemDelayBounds(t *testing.T) {
	t.Parallel()
	client := &fakeClient{kinds: map[int64]ItemKind{1: ItemText, 2: ItemText, 3: ItemText}}
	events := &fakeEvents{}
	cfg := testConfig()
	d, sleeps := newTestDispatcher(client, cfg, events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 3}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(*sleeps) != 3 {
		t.Fatalf("expected one delay per relayed item, got %v", *sleeps)
	}
	for _, s := range *sleeps {
		if s < cfg.MinDelay || s > cfg.MaxDelay {
			t.Fatalf("delay %v outside [%v, %v]", s, cfg.MinDelay, cfg.MaxDelay)
		}
	}
}

func TestDispatchMissNeverHalts(t *testing.T) {
	t.Parallel()
	client := &fakeClient{kinds: map[int64]ItemKind{3: ItemText}}
	events := &fakeEvents{}
	d, _ := newTestDispatcher(client, testConfig(), events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 3}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if events.results[0].Outcome != OutcomeSkippedNotFound || events.results[1].Outcome != OutcomeSkippedNotFound {
		t.Fatalf("results = %+v", events.results)
	}
	if events.results[2].Outcome != OutcomeDelivered {
		t.Fatalf("item after misses = %+v", events.results[2])
	}
}

func TestDispatchFailureIsolatedPerItem(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		kinds:     map[int64]ItemKind{1: ItemText, 2: ItemText},
		relayErrs: map[int64]error{1: errors.New("boom")},
	}
	events := &fakeEvents{}
	d, _ := newTestDispatcher(client, testConfig(), events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 2}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if events.results[0].Outcome != OutcomeFailed {
		t.Fatalf("result 0 = %+v", events.results[0])
	}
	if events.results[1].Outcome != OutcomeDelivered {
		t.Fatalf("result 1 = %+v", events.results[1])
	}
	if d.Stats().Failed != 1 {
		t.Fatalf("stats = %+v", d.Stats())
	}
}

func TestDispatchBatchPause(t *testing.T) {
	t.Parallel()
	kinds := make(map[int64]ItemKind)
	for id := int64(1); id <= 250; id++ {
		kinds[id] = ItemText
	}
	client := &fakeClient{kinds: kinds}
	events := &fakeEvents{}
	cfg := testConfig()
	d, sleeps := newTestDispatcher(client, cfg, events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 250}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(client.fetchCalls) != 3 {
		t.Fatalf("fetch calls = %d, want 3", len(client.fetchCalls))
	}
	if len(client.fetchCalls[0]) != 100 || len(client.fetchCalls[2]) != 50 {
		t.Fatalf("fetch batch sizes = %d/%d/%d", len(client.fetchCalls[0]), len(client.fetchCalls[1]), len(client.fetchCalls[2]))
	}
	pauses := 0
	for _, s := range *sleeps {
		if s == cfg.BatchPause {
			pauses++
		}
	}
	if pauses != 2 {
		t.Fatalf("batch pauses = %d, want 2 (sleeps: %d entries)", pauses, len(*sleeps))
	}
	if d.Stats().Delivered != 250 {
		t.Fatalf("delivered = %d", d.Stats().Delivered)
	}
}

func TestDispatchFetchFailureStillPaces(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		fetchErrs: []error{errors.New("lookup down"), errors.New("lookup down")},
	}
	events := &fakeEvents{}
	cfg := testConfig()
	d, sleeps := newTestDispatcher(client, cfg, events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 200}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(client.fetchCalls) != 2 {
		t.Fatalf("fetch calls = %d, want 2", len(client.fetchCalls))
	}
	// Every id failed, but each failed lookup must still be followed by a
	// pacing delay before the next remote call.
	if d.Stats().Failed != 200 {
		t.Fatalf("failed = %d, want 200", d.Stats().Failed)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("expected one delay per failed lookup, got %v", *sleeps)
	}
	for _, s := range *sleeps {
		if s < cfg.MinDelay || s > cfg.MaxDelay {
			t.Fatalf("delay %v outside [%v, %v]", s, cfg.MinDelay, cfg.MaxDelay)
		}
	}
}

func TestFetchThrottleRetriesOnce(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		kinds:     map[int64]ItemKind{1: ItemText},
		fetchErrs: []error{Throttled(errors.New("flood wait"), 3 * time.Second)},
	}
	events := &fakeEvents{}
	d, sleeps := newTestDispatcher(client, testConfig(), events)

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 1}
	if err := d.Dispatch(context.Background(), 0, Endpoint{}, Endpoint{}, dsc); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(client.fetchCalls) != 2 {
		t.Fatalf("fetch calls = %d, want 2", len(client.fetchCalls))
	}
	if (*sleeps)[0] != 8*time.Second {
		t.Fatalf("throttle sleep = %v, want 8s", (*sleeps)[0])
	}
	if d.Stats().Delivered != 1 {
		t.Fatalf("stats = %+v", d.Stats())
	}
}

func TestDispatchCancelStopsEarly(t *testing.T) {
	t.Parallel()
	client := &fakeClient{kinds: map[int64]ItemKind{1: ItemText, 2: ItemText}}
	events := &fakeEvents{}
	d, _ := newTestDispatcher(client, testConfig(), events)

	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(c context.Context, _ time.Duration) error {
		cancel()
		return c.Err()
	}

	dsc := task.Descriptor{Kind: task.KindRange, Start: 1, End: 2}
	err := d.Dispatch(ctx, 0, Endpoint{}, Endpoint{}, dsc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(client.relayed) != 1 {
		t.Fatalf("relayed = %v", client.relayed)
	}
}
