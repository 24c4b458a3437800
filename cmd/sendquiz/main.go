package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tgrelay/internal/config"
	"tgrelay/internal/quiz"
	"tgrelay/internal/report"
	"tgrelay/internal/transport/telegram"
	"tgrelay/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load[config.SendQuiz]()
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

	fatal := func(stage string, err error) {
		reporter.Fatal(stage, err)
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	deckPath := cfg.DeckFile
	if deckPath == "" {
		deckPath, err = quiz.FindDeck(".")
		if err != nil {
			fatal("deck", err)
		}
	}
	entries, err := quiz.Load(deckPath)
	if err != nil {
		fatal("deck", err)
	}
	log.Info("deck loaded", logx.String("path", deckPath), logx.Int("entries", len(entries)))

	client, err := telegram.New(cfg.BotToken, log)
	if err != nil {
		fatal("connect", err)
	}
	log.Info("connected", logx.String("as", client.Me()))

	if cfg.LogChannel != "" {
		if ep, err := client.Resolve(ctx, cfg.LogChannel); err != nil {
			log.Warn("log channel unavailable", logx.String("ref", cfg.LogChannel), logx.Err(err))
		} else {
			sink.Bind(client.Sink(ep))
		}
	}

	dst, err := client.Resolve(ctx, cfg.ChatID)
	if err != nil {
		fatal("resolve chat", err)
	}
	reporter.EndpointResolved("chat", dst)
	reporter.RunStarted("sendquiz", len(entries))

	sender := quiz.NewSender(client, reporter, cfg.QuestionTag, cfg.SendDelay, cfg.ThrottleMargin)
	stats, runErr := sender.SendAll(ctx, dst, entries)
	reporter.RunCompleted("sendquiz", stats)

	if runErr != nil {
		fmt.Println("fatal:", runErr)
		os.Exit(1)
	}
}
