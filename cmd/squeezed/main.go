package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"squeezetrader/config"
	"squeezetrader/internal/logger"
	"squeezetrader/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "", "YAML config file (default: environment)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("[squeezed] config: %v", err)
	}

	lg := logger.New("squeezed", cfg.LoggerOptions())
	log.Printf("[squeezed] symbol=%s bar=%ds feed=%s", cfg.Symbol, cfg.BarSeconds, cfg.Feed.Source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	svc, err := service.New(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("[squeezed] init failed: %v", err)
	}
	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[squeezed] fatal: %v", err)
	}
}
