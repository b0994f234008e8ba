// server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/vinizap/diary/server/config"
)

func main() {
	if err := config.LoadDotenv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
