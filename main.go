package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Speshl/gorrc_tracker/internal/app"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/Speshl/gorrc_tracker/internal/logging"
	socketio "github.com/googollee/go-socket.io"
)

func main() {
	logger := logging.New(config.DefaultLogLevel, os.Stderr, false)

	err := config.Load(os.Getenv(config.ConfigFileEnv))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed loading config")
	}

	cfg := config.GetConfig()
	logger = logging.New(cfg.LogLevel, os.Stderr, false)

	err = cfg.Validate()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	var client *socketio.Client
	if cfg.ServerCfg.Input == config.InputSocket {
		socketURI := fmt.Sprintf("http://%s", cfg.ServerCfg.Server)
		client, err = socketio.NewClient(socketURI, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("error creating client")
		}
	}

	tracker, err := app.NewApp(cfg, logger, client, os.Stdin)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed creating tracker")
	}

	err = tracker.RegisterHandlers()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed registering handlers")
	}

	err = tracker.Start(context.Background())
	if err != nil {
		logger.Error().Err(err).Msg("tracker shutdown with error")
		os.Exit(1)
	}
	logger.Info().Msg("tracker shutdown successfully")
}
