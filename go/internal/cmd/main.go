package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clockroom/clockroom/go/internal/relay"
	"github.com/clockroom/clockroom/go/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	config, err := loadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store first: the relay needs it, and it degrades rather than
	// fails when the backend is down.
	st := store.NewResilient(config.storeConfig())
	defer st.Disconnect()

	manager := relay.NewConnectionManager(relay.DefaultConnectionConfig())

	var publisher relay.DeltaPublisher
	var bridge *relay.Bridge
	if config.NATS.URL != "" {
		bridgeCfg := relay.DefaultBridgeConfig()
		bridgeCfg.URL = config.NATS.URL
		bridgeCfg.SubjectPrefix = config.NATS.SubjectPrefix
		bridge, err = relay.NewBridge(bridgeCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect bridge")
		}
		defer bridge.Stop()
		publisher = bridge
	}

	r := relay.New(config.relayConfig(), st, manager, publisher)
	manager.SetHandler(r)
	if bridge != nil {
		if err := bridge.Start(r); err != nil {
			log.Fatal().Err(err).Msg("failed to start bridge")
		}
	}

	go manager.Start(ctx)

	server := setupServer(config, manager, st)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if config.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
