package main

import (
	"flag"
	"os"

	"ranchhand/internal/bot"
	"ranchhand/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {

	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}

	// Configure logging
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Create bot
	ranchbot, err := bot.CreateBot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create discord bot")
	}
	log.Info().Int("ranches", len(cfg.Ranches)).Msg("Bot created")

	// Run bot
	if err := ranchbot.Run(); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped with an error")
	}
}
