// server/commands.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/vinizap/diary/server/config"
	"github.com/vinizap/diary/server/filesystem"
	httphandlers "github.com/vinizap/diary/server/http"
	"github.com/vinizap/diary/server/storage"
)

const connectTimeout = 15 * time.Second

// logOutput is where command loggers write.
var logOutput io.Writer = os.Stderr

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "diary",
		Usage: "Digital Diary API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newPingCommand(),
			newExportCommand(),
		},
		DefaultCommand: "serve",
	}
}

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func newPingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check that the configured database is reachable",
		Action: runPing,
	}
}

func newExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every memory to a markdown file with YAML frontmatter",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Destination directory",
				Value: "./export",
			},
		},
		Action: runExport,
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}

	logger, err := cfg.Logger(logOutput)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func openGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	g, err := storage.Open(ctx, cfg.DatabaseURI, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return g, nil
}

func closeGateway(g storage.Gateway, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := g.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("close database")
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	g, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway(g, logger)

	server := httphandlers.NewServer(g, logger)
	return server.Run(ctx, cfg.Addr(), cfg.ShutdownTimeout)
}

func runPing(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	g, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway(g, logger)

	if err := g.Ping(ctx); err != nil {
		return err
	}
	logger.Info().Msg("pinged your deployment, the database is reachable")
	return nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	g, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGateway(g, logger)

	memories, err := g.List(ctx)
	if err != nil {
		return err
	}

	dir := cmd.String("dir")
	n, err := filesystem.ExportMemories(dir, memories)
	if err != nil {
		return err
	}
	logger.Info().Int("count", n).Str("dir", dir).Msg("memories exported")
	return nil
}
