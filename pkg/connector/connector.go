// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/aiku/satori-telegram/pkg/connector/telegramfmt"
	"github.com/aiku/satori-telegram/pkg/satori"
)

// TelegramConnector is the adapter: one Telegram login exposed through the
// Satori API server.
type TelegramConnector struct {
	log     zerolog.Logger
	cfg     *Config
	client  *Client
	server  *satori.Server
	decoder *telegramfmt.Decoder
	fetcher *fileFetcher

	// fetchMessage looks up one message by peer and ID. Points at
	// getRawMessage outside of tests.
	fetchMessage func(ctx context.Context, peer tg.PeerClass, id int) (*telegramfmt.Message, error)
}

// NewConnector builds the adapter from its configuration.
func NewConnector(cfg *Config, log zerolog.Logger) (*TelegramConnector, error) {
	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	tc := &TelegramConnector{
		log:     log.With().Str("component", "connector").Logger(),
		cfg:     cfg,
		client:  client,
		fetcher: newFileFetcher(cfg.DefaultTimeout),
	}
	tc.fetchMessage = tc.getRawMessage
	tc.server = satori.NewServer(cfg.ListenAddr, cfg.Token, tc, log)
	tc.registerHandlers()
	return tc, nil
}

// Run connects to Telegram and serves the Satori API until ctx is
// cancelled.
func (tc *TelegramConnector) Run(ctx context.Context) error {
	if err := tc.client.Connect(ctx); err != nil {
		return fmt.Errorf("telegram connection failed: %w", err)
	}
	defer tc.client.Close()

	tc.decoder = &telegramfmt.Decoder{SelfID: tc.client.Self().ID}

	return tc.server.Run(ctx)
}
