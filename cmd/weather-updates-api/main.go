package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/weatherhub/weather-updates-api/internal/app"
	"github.com/weatherhub/weather-updates-api/internal/config"
	"github.com/weatherhub/weather-updates-api/pkg/logger"
)

func main() {
	// Missing .env is fine in environments configured through real env vars.
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.LogsPath, "weather-updates-api")

	application := app.New(*cfg, zlog)

	container, err := application.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize application")
	}

	defer func() {
		if err := application.Stop(container); err != nil {
			zlog.Error().Err(err).Msg("failed to shutdown application")
		}
	}()

	if err := application.Start(container); err != nil {
		zlog.Fatal().Err(err).Msg("server stopped with error")
	}
}
