package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tgrelay/internal/config"
	"tgrelay/internal/relay"
	"tgrelay/internal/report"
	"tgrelay/internal/runner"
	"tgrelay/internal/transport/telegram"
	"tgrelay/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load[config.Relay]()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.LogLevel,
		Console: true,
		File:    logx.FileConfig{Enabled: cfg.LogFile != "", Path: cfg.LogFile},
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer log.Close()

	sink := &report.DeferredSink{}
	reporter := report.New(ctx, log, sink, cfg.SinkRatePerSec)

	dispatch := relay.Config{
		MinDelay:       cfg.MinDelay,
		MaxDelay:       cfg.MaxDelay,
		BatchSize:      cfg.BatchSize,
		BatchPause:     cfg.BatchPause,
		ThrottleMargin: cfg.ThrottleMargin,
	}
	if cfg.PollsOnly {
		dispatch.Filter = relay.PollsOnly
	}

	run := &runner.Relay{
		Name:     "relay",
		Log:      log,
		Reporter: reporter,
		Connect: func(ctx context.Context) (relay.Client, error) {
			client, err := telegram.New(cfg.BotToken, log)
			if err != nil {
				return nil, err
			}
			log.Info("connected", logx.String("as", client.Me()))
			bindSink(ctx, log, client, sink, cfg.LogChannel)
			return client, nil
		},
		TaskFile:    cfg.TaskFile,
		Source:      cfg.SourceChannel,
		Destination: cfg.DestinationChannel,
		Dispatch:    dispatch,
	}

	if _, err := run.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

// bindSink wires the remote log channel once a session exists. Failures are
// logged and the run proceeds console-only.
func bindSink(ctx context.Context, log logx.Logger, client *telegram.Client, sink *report.DeferredSink, ref string) {
	if ref == "" {
		return
	}
	ep, err := client.Resolve(ctx, ref)
	if err != nil {
		log.Warn("log channel unavailable", logx.String("ref", ref), logx.Err(err))
		return
	}
	sink.Bind(client.Sink(ep))
}
