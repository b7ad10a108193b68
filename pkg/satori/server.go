// Copyright 2024-2026 Aiku AI

package satori

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler is implemented by a platform adapter. The server translates HTTP
// API calls into these methods and streams the adapter's events to
// connected clients.
type Handler interface {
	// Platform returns the platform name used in event envelopes.
	Platform() string
	// Logins returns the currently authenticated accounts.
	Logins(ctx context.Context) []*Login
	LoginGet(ctx context.Context) (*Login, error)
	UserGet(ctx context.Context, userID string) (*User, error)
	MessageCreate(ctx context.Context, channelID, content string) ([]*MessageObject, error)
	MessageGet(ctx context.Context, channelID, messageID string) (*MessageObject, error)
	MessageUpdate(ctx context.Context, channelID, messageID, content string) error
	// HandleInternal serves the bytes behind an internal: locator. The path
	// is the locator with the "internal:" prefix stripped.
	HandleInternal(w http.ResponseWriter, r *http.Request, path string)
}

// WebSocket op codes of the Satori event stream.
const (
	opEvent    = 0
	opPing     = 1
	opPong     = 2
	opIdentify = 3
	opReady    = 4
)

type wsPayload struct {
	Op   int             `json:"op"`
	Body json.RawMessage `json:"body,omitempty"`
}

type identifyBody struct {
	Token string `json:"token"`
}

type readyBody struct {
	Logins []*Login `json:"logins"`
}

// Server exposes the Satori HTTP API and event stream for one adapter.
type Server struct {
	addr    string
	token   string
	handler Handler
	log     zerolog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*wsConn
	seq   int64

	httpServer *http.Server
}

type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a frame without blocking. Returns false when the
// connection is closed or its send buffer is full; either way the caller
// should drop the connection. The mutex orders sends against the close in
// dropConn so a frame is never sent on a closed channel.
func (c *wsConn) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// NewServer creates a server listening on addr. An empty token disables
// authentication.
func NewServer(addr, token string, handler Handler, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		token:   token,
		handler: handler,
		log:     log.With().Str("component", "satori_server").Logger(),
		conns:   make(map[string]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) router() http.Handler {
	router := chi.NewRouter()
	router.Post("/v1/{method}", s.handleAPI)
	router.Get("/v1/events", s.handleEvents)
	router.Get("/v1/internal/*", s.handleInternal)
	return router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming internal assets
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("Starting Satori API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.closeAll()
		return nil
	case err := <-errCh:
		return fmt.Errorf("satori server failed: %w", err)
	}
}

// Publish stamps the event with a sequence number and fans it out to all
// connected event stream clients.
func (s *Server) Publish(event *Event) {
	s.mu.Lock()
	s.seq++
	event.ID = s.seq
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	body, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return
	}
	frame, err := json.Marshal(wsPayload{Op: opEvent, Body: body})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal event frame")
		return
	}

	for _, c := range conns {
		if !c.trySend(frame) {
			s.log.Warn().Str("conn_id", c.id).Msg("Event stream client gone or too slow, dropping connection")
			s.dropConn(c)
		}
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var params struct {
		ChannelID string `json:"channel_id"`
		MessageID string `json:"message_id"`
		UserID    string `json:"user_id"`
		Content   string `json:"content"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
	}

	method := chi.URLParam(r, "method")
	ctx := r.Context()

	var result any
	var err error
	switch method {
	case "login.get":
		result, err = s.handler.LoginGet(ctx)
	case "user.get":
		result, err = s.handler.UserGet(ctx, params.UserID)
	case "message.create":
		result, err = s.handler.MessageCreate(ctx, params.ChannelID, params.Content)
	case "message.get":
		result, err = s.handler.MessageGet(ctx, params.ChannelID, params.MessageID)
	case "message.update":
		err = s.handler.MessageUpdate(ctx, params.ChannelID, params.MessageID, params.Content)
		result = struct{}{}
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Str("method", method).Msg("API call failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if encErr := json.NewEncoder(w).Encode(result); encErr != nil {
		s.log.Error().Err(encErr).Str("method", method).Msg("Failed to encode API response")
	}
}

func (s *Server) handleInternal(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	s.handler.HandleInternal(w, r, path)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsConn{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
	}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.log.Debug().Str("conn_id", c.id).Msg("Event stream client connected")

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer s.dropConn(c)
	identified := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			s.log.Debug().Str("conn_id", c.id).Err(err).Msg("Event stream client disconnected")
			return
		}
		var payload wsPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			s.log.Warn().Str("conn_id", c.id).Err(err).Msg("Malformed event stream frame")
			continue
		}
		switch payload.Op {
		case opPing:
			s.sendFrame(c, wsPayload{Op: opPong})
		case opIdentify:
			var body identifyBody
			if len(payload.Body) > 0 {
				_ = json.Unmarshal(payload.Body, &body)
			}
			if s.token != "" && body.Token != s.token {
				s.log.Warn().Str("conn_id", c.id).Msg("Event stream client failed authentication")
				return
			}
			identified = true
			ready, err := json.Marshal(readyBody{Logins: s.handler.Logins(ctx)})
			if err != nil {
				s.log.Error().Err(err).Msg("Failed to marshal READY body")
				return
			}
			s.sendFrame(c, wsPayload{Op: opReady, Body: ready})
		default:
			if !identified {
				return
			}
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	for frame := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func (s *Server) sendFrame(c *wsConn, payload wsPayload) {
	frame, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = c.trySend(frame)
}

func (s *Server) dropConn(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		s.dropConn(c)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.token
}
