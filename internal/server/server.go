// Package server is the HTTP and websocket ingress for one workspace.
//
// Every route builds an ir.RequestContext from the caller's credentials and
// hands events to the workspace processor. Success carries no payload: a
// 204 for HTTP, an ack frame without error for websockets.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/cowork/internal/shared"
	"github.com/roach88/cowork/internal/workspace"
)

// Config holds server settings.
type Config struct {
	ListenAddr string
	// JWTSecret enables HS256 bearer-token auth. When empty, callers are
	// identified by the X-User-ID header.
	JWTSecret string
	// Broadcast pushes shared-state change notifications to websocket
	// clients.
	Broadcast bool
	// Now stamps request contexts. Defaults to time.Now.
	Now func() time.Time
}

// Server serves one workspace.
type Server struct {
	config    Config
	ws        *workspace.Workspace
	http      *http.Server
	upgrader  websocket.Upgrader
	hub       *hub
	unobserve func()
}

// New creates a server for ws.
func New(cfg Config, ws *workspace.Workspace) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		config: cfg,
		ws:     ws,
		hub:    newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if cfg.Broadcast {
		s.unobserve = ws.Doc.Observe(func(changes []shared.Change) {
			s.hub.broadcast(changes)
		})
	}

	s.http = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/state/digest", s.requireAuth(s.handleDigest))
	mux.HandleFunc("POST /v1/events", s.requireAuth(s.handleEvent))
	mux.HandleFunc("POST /v1/events/batch", s.requireAuth(s.handleBatch))
	mux.HandleFunc("GET /v1/ws", s.requireAuth(s.handleWS))

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, loggingMiddleware, maxBytesMiddleware(1<<20))
}

// Start begins listening (non-blocking) and returns the bound address.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops accepting requests, closes websocket clients and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unobserve != nil {
		s.unobserve()
	}
	err := s.http.Shutdown(ctx)
	s.hub.closeAll()
	return err
}
