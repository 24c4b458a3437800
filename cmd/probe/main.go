// Command probe verifies the environment end to end: token, session, and the
// log channel. It is meant to be run once before any real batch job.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgrelay/internal/config"
	"tgrelay/internal/transport/telegram"
	"tgrelay/pkg/logx"
	"tgrelay/pkg/tghtml"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load[config.Probe]()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	log := logx.NewConsole(cfg.LogLevel)

	client, err := telegram.New(cfg.BotToken, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	log.Info("connected", logx.String("as", client.Me()))

	if cfg.LogChannel == "" {
		log.Info("no log channel configured, token check only")
		return
	}

	ep, err := client.Resolve(ctx, cfg.LogChannel)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	log.Info("log channel resolved", logx.Int64("chat_id", ep.ID), logx.String("title", ep.Title))

	text := tghtml.JoinH("\n",
		tghtml.Raw("🔧 "+tghtml.B("probe").String()+" from "+tghtml.Esc(client.Me()).String()),
		tghtml.KV("time", time.Now().Format(time.RFC3339)),
	)
	if err := client.Sink(ep).Publish(ctx, text.String()); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	log.Info("test line delivered")
}
