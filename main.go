package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"blacksky-md/commands"
	"blacksky-md/core"
	"blacksky-md/features"
	"blacksky-md/report"
	"blacksky-md/session"
	"blacksky-md/utils"
	"blacksky-md/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := core.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	core.InitSettings(cfg.SettingsFile)

	if cfg.Number != "" {
		number, err := utils.NormalizeNumber(cfg.Number)
		if err != nil {
			logger.Error().Err(err).Str("number", cfg.Number).Msg("invalid WHATSAPP_NUMBER")
			return 1
		}
		cfg.Number = number
		logger.Info().Str("number", number).Str("region", utils.RegionCode(number)).Msg("using configured number")
	}
	if cfg.PairingMethod == core.PairingMethodCode && cfg.Number == "" {
		logger.Error().Msg("PAIRING_METHOD=code requires WHATSAPP_NUMBER to be set")
		return 1
	}

	mgr := session.New(cfg, logger)

	registry := commands.NewRegistry(logger)
	commands.RegisterBuiltins(registry)

	mgr.SetOnMessage(func(client *whatsmeow.Client, msg *events.Message) {
		features.HandleAutoPresence(client, msg)
		registry.Dispatch(context.Background(), client, msg)
	})

	hub := web.NewHub(logger)
	reporter := report.New(cfg.StatusWebhookURL, logger)
	mgr.SetOnChange(func(st session.Status) {
		hub.Broadcast(st)
		reporter.Report(st)
	})

	srv := web.NewServer(cfg.Port, mgr, hub, logger)
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("failed to start status page")
		return 1
	}
	logger.Info().Int("port", cfg.Port).Msg("status page listening")

	go mgr.Connect(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("presenter shutdown failed")
	}
	hub.Close()
	mgr.Shutdown()
	return 0
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
