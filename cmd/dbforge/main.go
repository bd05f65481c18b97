package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/api"
	"github.com/sirrobot01/dbforge/pkg/config"
	"github.com/sirrobot01/dbforge/pkg/database"
	"github.com/sirrobot01/dbforge/pkg/export"
	"github.com/sirrobot01/dbforge/pkg/query"
	cruntime "github.com/sirrobot01/dbforge/pkg/runtime"
	"github.com/sirrobot01/dbforge/pkg/schema"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

func main() {
	cfg := config.FromArgs()

	// Setup zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(string(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	// Pretty console output for development
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Str("runtime", cfg.Runtime).
		Str("socket", cfg.Socket).
		Msg("Starting dbforge")

	store, err := storage.New(cfg.StoragePath(), cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer store.Close()

	runtimeClient, err := cruntime.New(cfg.Runtime, cfg.Socket, cfg.Network())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize container runtime")
	}
	defer func(runtimeClient cruntime.Client) {
		if err := runtimeClient.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing container runtime client")
		}
	}(runtimeClient)

	manager := database.NewManager(store, runtimeClient, cfg, query.NewGateway())
	introspector := schema.NewIntrospector()
	apiServer := api.NewServer(manager, store, query.NewRouter(), introspector, export.NewExporter(introspector))

	addr := cfg.Addr()
	server := &http.Server{
		Addr:    addr,
		Handler: apiServer.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		if err := server.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing server")
		}
	}()

	log.Info().Str("addr", addr).Msg("Server started")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
