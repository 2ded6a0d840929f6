package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/dnldd/marketprofile/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Err(err).Msg("loading config")
		return
	}

	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceCfg, err := cfg.serviceConfig(cancel)
	if err != nil {
		log.Error().Err(err).Msg("resolving service config")
		return
	}

	svc, err := service.NewService(ctx, serviceCfg)
	if err != nil {
		log.Error().Err(err).Msg("creating market profile service")
		return
	}

	go handleTermination(ctx, cancel)

	err = svc.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("running market profile service")
	}
}
