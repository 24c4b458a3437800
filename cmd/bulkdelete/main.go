package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tgrelay/internal/config"
	"tgrelay/internal/report"
	"tgrelay/internal/runner"
	"tgrelay/internal/transport/telegram"
	"tgrelay/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load[config.BulkDelete]()
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

	run := &runner.Delete{
		Name:     "bulkdelete",
		Log:      log,
		Reporter: reporter,
		Connect: func(ctx context.Context) (runner.BatchDeleter, error) {
			client, err := telegram.New(cfg.BotToken, log)
			if err != nil {
				return nil, err
			}
			log.Info("connected", logx.String("as", client.Me()))
			if cfg.LogChannel != "" {
				if ep, err := client.Resolve(ctx, cfg.LogChannel); err != nil {
					log.Warn("log channel unavailable", logx.String("ref", cfg.LogChannel), logx.Err(err))
				} else {
					sink.Bind(client.Sink(ep))
				}
			}
			return client, nil
		},
		TaskFile:       cfg.TaskFile,
		Target:         cfg.TargetChannel,
		BatchSize:      cfg.BatchSize,
		BatchPause:     cfg.BatchPause,
		ThrottleMargin: cfg.ThrottleMargin,
	}

	if _, err := run.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
