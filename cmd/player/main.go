package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/benbjohnson/clock"

	"tvcontrol/internal/channel"
	"tvcontrol/internal/config"
	"tvcontrol/internal/contentsvc"
	"tvcontrol/internal/loader"
	"tvcontrol/internal/player"
	"tvcontrol/internal/protocol"
	"tvcontrol/internal/shuffle"
	"tvcontrol/internal/surface"
	"tvcontrol/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	content, err := contentsvc.New(cfg.Content.BaseURL, cfg.Content.Token, cfg.Channel.AccountID, cfg.Engine.RequestTimeout)
	if err != nil {
		log.Fatalf("content client: %v", err)
	}

	clk := clock.New()
	feed := loader.New(content, cfg.Engine, clk)
	ch := channel.New(channel.Options{
		URL:   cfg.Channel.URL,
		Topic: protocol.Topic(cfg.Channel.AccountID),
		Role:  protocol.RolePlayer,
	})

	p := player.New(cfg.Engine, player.Deps{
		Clock:     clk,
		Rand:      shuffle.NewRand(),
		Channel:   ch,
		Feed:      feed,
		Surface:   surface.NewHeadless(surface.Options{Clock: clk, Fallback: cfg.Engine.ContentFallback}),
		Telemetry: telemetry.New(content, cfg.Engine.RequestTimeout),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context) error{ch.Run, feed.Run, p.Run} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			_ = run(ctx)
		}(run)
	}

	log.Printf("Player running on topic %s\n", protocol.Topic(cfg.Channel.AccountID))
	<-ctx.Done()
	log.Println("Shutting down player...")
	wg.Wait()
	log.Println("Player stopped")
}
