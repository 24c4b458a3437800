// Package runner drives a whole run through its lifecycle: validate inputs,
// connect, resolve endpoints, execute every task, summarize. Everything up to
// and including endpoint resolution is fatal on error; after that the run
// always produces a summary.
package runner

import (
	"context"
	"fmt"
	"os"

	"tgrelay/internal/relay"
	"tgrelay/internal/report"
	"tgrelay/internal/task"
	"tgrelay/pkg/logx"
)

// Relay owns one forwarding run. Collaborators are injected so the lifecycle
// can be exercised without a live session.
type Relay struct {
	Name     string
	Log      logx.Logger
	Reporter *report.Reporter

	// Connect establishes the authenticated session. Runs at most once.
	Connect func(ctx context.Context) (relay.Client, error)

	TaskFile    string
	Source      string
	Destination string
	Dispatch    relay.Config

	phase Phase
}

// Phase reports the current lifecycle stage.
func (r *Relay) Phase() Phase { return r.phase }

func (r *Relay) advance(p Phase) {
	r.phase = p
	r.Log.Debug("phase", logx.String("phase", p.String()))
}

func (r *Relay) fatal(stage string, err error) error {
	r.Reporter.Fatal(stage, err)
	return fmt.Errorf("%s: %w", stage, err)
}

// Run executes the full lifecycle. A non-nil error means the run aborted
// before dispatch or was cancelled; per-item failures never surface here.
func (r *Relay) Run(ctx context.Context) (*relay.Stats, error) {
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

	src, err := client.Resolve(ctx, r.Source)
	if err != nil {
		return nil, r.fatal("resolve source", err)
	}
	r.Reporter.EndpointResolved("source", src)

	dst, err := client.Resolve(ctx, r.Destination)
	if err != nil {
		return nil, r.fatal("resolve destination", err)
	}
	r.Reporter.EndpointResolved("destination", dst)
	r.advance(PhaseChannelsResolved)

	r.Reporter.RunStarted(r.Name, len(tasks))
	r.Reporter.ParseWarnings(warnings)

	r.advance(PhaseExecuting)
	d := relay.NewDispatcher(client, r.Dispatch, r.Reporter)

	var runErr error
	for i, dsc := range tasks {
		if err := d.Dispatch(ctx, i, src, dst, dsc); err != nil {
			runErr = err
			break
		}
	}

	stats := d.Finish()
	r.Reporter.RunCompleted(r.Name, stats)
	r.advance(PhaseSummarized)
	r.advance(PhaseTerminated)
	return stats, runErr
}
