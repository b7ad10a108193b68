// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command satori-telegram is a Telegram adapter for the Satori protocol.
// It logs into one Telegram account over MTProto and exposes it through
// the Satori HTTP API and WebSocket event stream, translating rich text,
// media, replies, and inline keyboards in both directions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aiku/satori-telegram/pkg/connector"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	writeExample := flag.Bool("write-example-config", false, "write the example config to stdout and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *writeExample {
		fmt.Print(connector.ExampleConfig)
		return
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	log.Info().
		Str("tag", Tag).
		Str("commit", Commit).
		Str("build_time", BuildTime).
		Msg("Starting satori-telegram")

	cfg, err := connector.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	tc, err := connector.NewConnector(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize connector")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Adapter exited with error")
	}
	log.Info().Msg("Shutdown complete")
}
