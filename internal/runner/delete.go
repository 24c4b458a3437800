package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tgrelay/internal/relay"
	"tgrelay/internal/report"
	"tgrelay/internal/task"
	"tgrelay/pkg/logx"
)

// deleteBatchMax is the platform's hard cap on ids per delete call.
const deleteBatchMax = 100

// errStopRun ends the remaining work early while still producing a summary.
var errStopRun = errors.New("run stopped")

// BatchDeleter is the client surface the delete run needs.
type BatchDeleter interface {
	Resolve(ctx context.Context, ref string) (relay.Endpoint, error)
	DeleteBatch(ctx context.Context, dst relay.Endpoint, ids []int64) error
}

// Delete owns one bulk-delete run. It consumes the same task file grammar as
// the forwarder but acts only on ranges; message lines are ignored.
type Delete struct {
	Name     string
	Log      logx.Logger
	Reporter *report.Reporter

	Connect func(ctx context.Context) (BatchDeleter, error)

	TaskFile       string
	Target         string
	BatchSize      int
	BatchPause     time.Duration
	ThrottleMargin time.Duration

	phase Phase
	sleep func(context.Context, time.Duration) error
}

// Phase reports the current lifecycle stage.
func (r *Delete) Phase() Phase { return r.phase }

func (r *Delete) advance(p Phase) {
	r.phase = p
	r.Log.Debug("phase", logx.String("phase", p.String()))
}

func (r *Delete) fatal(stage string, err error) error {
	r.Reporter.Fatal(stage, err)
	return fmt.Errorf("%s: %w", stage, err)
}

func (r *Delete) withDefaults() {
	if r.BatchSize <= 0 || r.BatchSize > deleteBatchMax {
		r.BatchSize = deleteBatchMax
	}
	if r.BatchPause <= 0 {
		r.BatchPause = 2 * time.Second
	}
	if r.ThrottleMargin <= 0 {
		r.ThrottleMargin = 5 * time.Second
	}
	if r.sleep == nil {
		r.sleep = sleepCtx
	}
}

// Run executes the full lifecycle. A non-nil error means the run aborted
// before the first delete call or was cancelled.
func (r *Delete) Run(ctx context.Context) (*relay.Stats, error) {
	r.withDefaults()
	r.advance(PhaseInit)

	f, err := os.Open(r.TaskFile)
	if err != nil {
		return nil, r.fatal("task file", err)
	}
	tasks, warnings, err := task.Parse(f)
	f.Close()
	if err != nil {
		return nil, r.fatal("task file", err)
	}
	r.advance(PhaseConfigValidated)

	client, err := r.Connect(ctx)
	if err != nil {
		return nil, r.fatal("connect", err)
	}
	r.advance(PhaseClientConnected)

	dst, err := client.Resolve(ctx, r.Target)
	if err != nil {
		return nil, r.fatal("resolve target", err)
	}
	r.Reporter.EndpointResolved("target", dst)
	r.advance(PhaseChannelsResolved)

	r.Reporter.RunStarted(r.Name, len(tasks))
	r.Reporter.ParseWarnings(warnings)

	r.advance(PhaseExecuting)
	stats := &relay.Stats{StartedAt: time.Now()}

	var runErr error
	for i, dsc := range tasks {
		if dsc.Kind != task.KindRange {
			r.Log.Warn("ignoring non-range task", logx.Int("task", i+1), logx.String("what", dsc.String()))
			continue
		}
		r.Reporter.TaskStarted(i, dsc)
		if err := r.deleteRange(ctx, client, dst, dsc, stats); err != nil {
			if !errors.Is(err, errStopRun) {
				runErr = err
			}
			break
		}
		r.Reporter.TaskCompleted(i, dsc)
	}

	stats.FinishedAt = time.Now()
	r.Reporter.RunCompleted(r.Name, stats)
	r.advance(PhaseSummarized)
	r.advance(PhaseTerminated)
	return stats, runErr
}

// deleteRange removes one range batch by batch. Deletion is idempotent, so a
// throttled batch is retried once after the wait; a second throttle or any
// other failure marks the whole batch failed and the run moves on. Missing
// rights end the run: they will not come back mid-run.
func (r *Delete) deleteRange(ctx context.Context, client BatchDeleter, dst relay.Endpoint, dsc task.Descriptor, stats *relay.Stats) error {
	it := dsc.Batches(r.BatchSize)
	for {
		batch, ok := it.Next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := client.DeleteBatch(ctx, dst, batch)
		if retryAfter, throttled := relay.AsThrottled(err); throttled {
			wait := retryAfter + r.ThrottleMargin
			r.Reporter.ThrottleWait(batch[0], wait)
			if serr := r.sleep(ctx, wait); serr != nil {
				return serr
			}
			err = client.DeleteBatch(ctx, dst, batch)
		}

		switch {
		case err == nil:
			stats.Delivered += len(batch)
			r.Log.Info("batch deleted",
				logx.Int64("from", batch[0]),
				logx.Int64("to", batch[len(batch)-1]),
				logx.Int("count", len(batch)))

		case errors.Is(err, relay.ErrForbidden):
			stats.Failed += len(batch)
			r.Reporter.RunStopped("insufficient rights to delete", err)
			return errStopRun

		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed += len(batch)
			r.Log.Warn("batch delete failed",
				logx.Int64("from", batch[0]),
				logx.Int("count", len(batch)),
				logx.Err(err))
		}

		if it.Remaining() > 0 {
			if err := r.sleep(ctx, r.BatchPause); err != nil {
				return err
			}
		}
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
