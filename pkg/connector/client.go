// Copyright 2024-2026 Aiku AI

package connector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// fileLocation is a cached reference to a media object seen in an incoming
// or sent message, kept so the internal asset route can serve it later.
type fileLocation struct {
	location tg.InputFileLocationClass
	mime     string
	size     int64
}

// Client wraps the MTProto client with the caches the adapter needs: input
// peers by chat ID and file locations by file ID.
type Client struct {
	log        zerolog.Logger
	cfg        *Config
	client     *telegram.Client
	dispatcher tg.UpdateDispatcher
	stop       bg.StopFunc

	self *tg.User

	mu    sync.Mutex
	peers map[int64]tg.InputPeerClass
	files map[string]fileLocation
}

// NewClient builds the MTProto client from the configuration. Connect must
// be called before any API use.
func NewClient(cfg *Config, log zerolog.Logger) (*Client, error) {
	c := &Client{
		log:        log.With().Str("component", "telegram_client").Logger(),
		cfg:        cfg,
		dispatcher: tg.NewUpdateDispatcher(),
		peers:      make(map[int64]tg.InputPeerClass),
		files:      make(map[string]fileLocation),
	}

	opts := telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  c.dispatcher,
	}
	if cfg.Proxy != "" {
		resolver, err := proxyResolver(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		opts.Resolver = resolver
	}

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, opts)
	return c, nil
}

// proxyResolver builds a DC resolver dialing through a SOCKS5 proxy given
// as socks5://[user:pass@]host:port.
func proxyResolver(addr string) (dcs.Resolver, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy address: %w", err)
	}
	if parsed.Scheme != "socks5" && parsed.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported proxy scheme %q, only socks5 is supported", parsed.Scheme)
	}
	var pauth *proxy.Auth
	if parsed.User != nil {
		pass, _ := parsed.User.Password()
		pauth = &proxy.Auth{User: parsed.User.Username(), Password: pass}
	}
	dialer, err := proxy.SOCKS5("tcp", parsed.Host, pauth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
	}
	return dcs.Plain(dcs.PlainOptions{Dial: contextDialer.DialContext}), nil
}

// Connect starts the MTProto connection in the background and completes
// authentication. Blocks until the account is authorized.
func (c *Client) Connect(ctx context.Context) error {
	stop, err := bg.Connect(c.client)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	c.stop = stop

	if err := c.authorize(ctx); err != nil {
		stop()
		return err
	}

	self, err := c.client.Self(ctx)
	if err != nil {
		stop()
		return fmt.Errorf("failed to fetch own user: %w", err)
	}
	c.self = self
	c.mu.Lock()
	c.peers[self.ID] = &tg.InputPeerUser{UserID: self.ID, AccessHash: self.AccessHash}
	c.mu.Unlock()

	c.log.Info().
		Int64("user_id", self.ID).
		Str("username", self.Username).
		Bool("bot", self.Bot).
		Msg("Logged in to Telegram")
	return nil
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check auth status: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if c.cfg.BotToken != "" {
		if _, err := c.client.Auth().Bot(ctx, c.cfg.BotToken); err != nil {
			return fmt.Errorf("bot login failed: %w", err)
		}
		return nil
	}
	flow := auth.NewFlow(
		auth.Constant(c.cfg.Phone, c.cfg.Password, auth.CodeAuthenticatorFunc(promptCode)),
		auth.SendCodeOptions{},
	)
	if err := flow.Run(ctx, c.client.Auth()); err != nil {
		return fmt.Errorf("user login failed: %w", err)
	}
	return nil
}

func promptCode(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	fmt.Fprint(os.Stderr, "Enter the login code sent by Telegram: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

// Close stops the background connection.
func (c *Client) Close() {
	if c.stop != nil {
		if err := c.stop(); err != nil {
			c.log.Warn().Err(err).Msg("Error stopping Telegram connection")
		}
	}
}

// API returns the raw method client.
func (c *Client) API() *tg.Client {
	return c.client.API()
}

// Self returns the logged-in account. Only valid after Connect.
func (c *Client) Self() *tg.User {
	return c.self
}

// Dispatcher returns the update dispatcher for handler registration. All
// registrations must happen before Connect.
func (c *Client) Dispatcher() *tg.UpdateDispatcher {
	return &c.dispatcher
}

// rememberEntities caches input peers for every user and chat seen in an
// update, so later sends can address them without a resolve round trip.
func (c *Client) rememberEntities(entities tg.Entities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, user := range entities.Users {
		c.peers[id] = &tg.InputPeerUser{UserID: id, AccessHash: user.AccessHash}
	}
	for id := range entities.Chats {
		c.peers[id] = &tg.InputPeerChat{ChatID: id}
	}
	for id, channel := range entities.Channels {
		c.peers[id] = &tg.InputPeerChannel{ChannelID: id, AccessHash: channel.AccessHash}
	}
}

// InputPeer resolves a chat ID from the peer cache.
func (c *Client) InputPeer(chatID int64) (tg.InputPeerClass, error) {
	c.mu.Lock()
	peer, ok := c.peers[chatID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown chat %d, no message seen from it yet", chatID)
	}
	return peer, nil
}

// rememberFile caches the download location behind a file ID.
func (c *Client) rememberFile(fileID string, loc fileLocation) {
	c.mu.Lock()
	c.files[fileID] = loc
	c.mu.Unlock()
}

// OpenFile downloads a previously seen media object by its file ID and
// returns the content with its MIME type.
func (c *Client) OpenFile(ctx context.Context, fileID string) ([]byte, string, error) {
	c.mu.Lock()
	loc, ok := c.files[fileID]
	c.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("unknown file %s", fileID)
	}

	var buf bytes.Buffer
	d := downloader.NewDownloader()
	if _, err := d.Download(c.API(), loc.location).Stream(ctx, &buf); err != nil {
		return nil, "", fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	return buf.Bytes(), loc.mime, nil
}

// registerPhoto caches a photo's largest size for download and returns its
// file ID.
func (c *Client) registerPhoto(photo *tg.Photo) string {
	sizeType := ""
	for _, size := range photo.Sizes {
		switch s := size.(type) {
		case *tg.PhotoSize:
			sizeType = s.Type
		case *tg.PhotoSizeProgressive:
			sizeType = s.Type
		}
	}
	fileID := strconv.FormatInt(photo.ID, 10)
	c.rememberFile(fileID, fileLocation{
		location: &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     sizeType,
		},
		mime: "image/jpeg",
	})
	return fileID
}

// registerDocument caches a document for download and returns its file ID.
func (c *Client) registerDocument(doc *tg.Document) string {
	fileID := strconv.FormatInt(doc.ID, 10)
	c.rememberFile(fileID, fileLocation{
		location: &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		},
		mime: doc.MimeType,
		size: doc.Size,
	})
	return fileID
}
