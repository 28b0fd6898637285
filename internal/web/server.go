// Package web serves the browser chat: a server-rendered page whose controls
// post back and redirect, plus a websocket that streams replies.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"oshaberi/internal/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultIdleTimeout = 30 * time.Minute

	shutdownTimeout = 10 * time.Second
)

type Options struct {
	Addr        string
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// Server owns the HTTP listener and the session sweeper.
type Server struct {
	chat     *chat.Chat
	store    *chat.Store
	markdown *Markdown
	page     *template.Template
	upgrader websocket.Upgrader
	logger   *slog.Logger

	addr        string
	idleTimeout time.Duration
	handler     http.Handler
}

func New(c *chat.Chat, store *chat.Store, opts Options) (*Server, error) {
	if c == nil || store == nil {
		return nil, errors.New("chat and session store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"temperature": func(t float64) string { return fmt.Sprintf("%.1f", t) },
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		chat:        c,
		store:       store,
		markdown:    NewMarkdown(),
		page:        page,
		logger:      logger,
		addr:        opts.Addr,
		idleTimeout: opts.IdleTimeout,
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.idleTimeout <= 0 {
		s.idleTimeout = DefaultIdleTimeout
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /style", s.handleStyle)
	mux.HandleFunc("POST /temperature", s.handleTemperature)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /reset/confirm", s.handleResetConfirm)
	mux.HandleFunc("POST /reset/cancel", s.handleResetCancel)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return chain(mux,
		recoverPanics(s.logger),
		securityHeaders,
		logRequests(s.logger),
	)
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully. Idle
// sessions are swept in the background for as long as the server runs.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.sweep(ctx)
		return nil
	})
	return g.Wait()
}

func (s *Server) sweep(ctx context.Context) {
	interval := s.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.Sweep(s.idleTimeout)
		}
	}
}
