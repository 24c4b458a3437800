// Package report turns dispatch events into operator-visible output: a
// console line for every event, and a curated subset forwarded to a remote
// log channel. Item-level skips stay off the remote channel so a large run
// cannot flood it; failures do go remote but share the same rate budget.
package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"tgrelay/internal/relay"
	"tgrelay/internal/task"
	"tgrelay/pkg/logx"
	"tgrelay/pkg/tghtml"
)

// Sink delivers one pre-escaped HTML line to the remote log channel.
type Sink interface {
	Publish(ctx context.Context, html string) error
}

// DeferredSink is a Sink that starts unbound and silently drops events until
// Bind is called. The remote channel needs a connected client, but the
// reporter must exist before the connect step so pre-connect fatals still get
// console output.
type DeferredSink struct {
	inner Sink
}

func (s *DeferredSink) Bind(inner Sink) { s.inner = inner }

func (s *DeferredSink) Publish(ctx context.Context, html string) error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Publish(ctx, html)
}

// Reporter implements relay.Events plus the run-level milestones. Console
// output is best-effort and never blocks dispatch; sink delivery failures
// are logged locally and never propagate.
type Reporter struct {
	log     logx.Logger
	sink    Sink // nil disables the remote channel
	limiter *rate.Limiter
	ctx     context.Context
}

// New builds a reporter. ratePerSec bounds sink traffic; events over the
// budget are dropped rather than queued, matching the sink's purpose as a
// coarse operational trace.
func New(ctx context.Context, log logx.Logger, sink Sink, ratePerSec int) *Reporter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Reporter{
		log:     log,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		ctx:     ctx,
	}
}

// RunStarted announces the run and its task count.
func (r *Reporter) RunStarted(name string, taskCount int) {
	r.log.Info("run started", logx.String("run", name), logx.Int("tasks", taskCount))
	r.publish(tghtml.JoinH("\n",
		tghtml.Raw("🚀 "+tghtml.B(name).String()+" started"),
		tghtml.KV("tasks", fmt.Sprintf("%d", taskCount)),
	))
}

// EndpointResolved confirms channel verification before any dispatch.
func (r *Reporter) EndpointResolved(role string, ep relay.Endpoint) {
	r.log.Info("endpoint resolved", logx.String("role", role), logx.Int64("chat_id", ep.ID), logx.String("title", ep.Title))
	r.publish(tghtml.Raw("✅ " + tghtml.B(role).String() + " resolved: " + tghtml.Esc(ep.Title).String()))
}

// ParseWarnings surfaces tolerated task-file anomalies (dangling start/end).
func (r *Reporter) ParseWarnings(warnings []task.Warning) {
	for _, w := range warnings {
		r.log.Warn("task file warning", logx.Int("line", w.Line), logx.String("reason", w.Reason))
		r.publish(tghtml.Raw("⚠️ task file " + tghtml.Esc(w.String()).String()))
	}
}

// TaskStarted implements relay.Events.
func (r *Reporter) TaskStarted(index int, d task.Descriptor) {
	r.log.Info("task started", logx.Int("task", index+1), logx.String("what", d.String()), logx.Int64("items", d.Count()))
	r.publish(tghtml.Raw(fmt.Sprintf("▶️ task %d: %s", index+1, tghtml.Esc(d.String()).String())))
}

// ItemDone implements relay.Events. Deliveries and skips stay on the
// console; hard failures also go to the sink so the operator sees them
// without tailing the run. Throttles are covered by ThrottleWait and are not
// published twice.
func (r *Reporter) ItemDone(res relay.Result) {
	fields := []logx.Field{logx.Int64("id", res.ItemID), logx.String("outcome", res.Outcome.String())}
	if res.Err != nil {
		fields = append(fields, logx.Err(res.Err))
	}
	switch res.Outcome {
	case relay.OutcomeDelivered:
		r.log.Info("item delivered", fields...)
	case relay.OutcomeFailed:
		r.log.Warn("item not delivered", fields...)
		reason := res.Outcome.String()
		if res.Err != nil {
			reason = res.Err.Error()
		}
		r.publish(tghtml.JoinH("\n",
			tghtml.Raw("🔻 item "+tghtml.Code(fmt.Sprintf("%d", res.ItemID)).String()+" failed"),
			tghtml.Pre(tghtml.TruncRunes(reason, 500)),
		))
	case relay.OutcomeThrottled:
		r.log.Warn("item not delivered", fields...)
	default:
		r.log.Info("item skipped", fields...)
	}
}

// ThrottleWait implements relay.Events. Throttle warnings do go to the sink:
// they change the run's wall-clock expectations.
func (r *Reporter) ThrottleWait(itemID int64, wait time.Duration) {
	r.log.Warn("flood control, suspending", logx.Int64("id", itemID), logx.Duration("wait", wait))
	r.publish(tghtml.Raw("🟡 flood control at item " + tghtml.Code(fmt.Sprintf("%d", itemID)).String() + ", pausing " + tghtml.Esc(wait.String()).String()))
}

// TaskCompleted implements relay.Events.
func (r *Reporter) TaskCompleted(index int, d task.Descriptor) {
	r.log.Info("task completed", logx.Int("task", index+1), logx.String("what", d.String()))
	r.publish(tghtml.Raw(fmt.Sprintf("☑️ task %d done", index+1)))
}

// RunCompleted emits the final summary to both channels.
func (r *Reporter) RunCompleted(name string, stats *relay.Stats) {
	r.log.Info("run completed",
		logx.String("run", name),
		logx.Int("delivered", stats.Delivered),
		logx.Int("skipped", stats.Skipped()),
		logx.Int("errors", stats.Errors()),
		logx.Duration("elapsed", stats.Elapsed()),
	)
	r.publish(tghtml.JoinH("\n",
		tghtml.Raw("🏁 "+tghtml.B(name).String()+" completed"),
		tghtml.KV("delivered", fmt.Sprintf("%d", stats.Delivered)),
		tghtml.KV("skipped", fmt.Sprintf("%d", stats.Skipped())),
		tghtml.KV("errors", fmt.Sprintf("%d", stats.Errors())),
		tghtml.KV("elapsed", stats.Elapsed().Round(time.Second).String()),
	))
}

// RunStopped reports an early stop that still ends in a normal summary, such
// as losing delete rights mid-run.
func (r *Reporter) RunStopped(reason string, err error) {
	r.log.Error("run stopped", logx.String("reason", reason), logx.Err(err))
	parts := []tghtml.H{tghtml.Raw("🛑 stopping: " + tghtml.Esc(reason).String())}
	if err != nil {
		parts = append(parts, tghtml.Pre(tghtml.TruncRunes(err.Error(), 500)))
	}
	r.publish(tghtml.JoinH("\n", parts...))
}

// Fatal reports a pre-dispatch abort. The process exits right after, so this
// bypasses the rate limiter.
func (r *Reporter) Fatal(stage string, err error) {
	r.log.Error("fatal", logx.String("stage", stage), logx.Err(err))
	if r.sink == nil {
		return
	}
	text := tghtml.JoinH("\n",
		tghtml.Raw("🔴 "+tghtml.B("FATAL").String()+" at "+tghtml.Esc(stage).String()),
		tghtml.Pre(tghtml.TruncRunes(err.Error(), 1000)),
	)
	if perr := r.sink.Publish(r.ctx, text.String()); perr != nil {
		r.log.Warn("log sink delivery failed", logx.Err(perr))
	}
}

// publish forwards one escaped line to the sink, dropping it when over the
// rate budget. Failures are printed locally and swallowed.
func (r *Reporter) publish(text tghtml.H) {
	if r.sink == nil {
		return
	}
	if !r.limiter.Allow() {
		r.log.Debug("log sink event dropped (rate limit)")
		return
	}
	if err := r.sink.Publish(r.ctx, text.String()); err != nil {
		r.log.Warn("log sink delivery failed", logx.Err(err))
	}
}
