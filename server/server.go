// Package server exposes the chat service over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"gdrivechat/chat"
	"gdrivechat/mcp"
	"gdrivechat/storage"
)

// Chat is the conversation surface the handlers drive.
type Chat interface {
	ProcessMessage(ctx context.Context, userID, message string) chat.Response
	History(userID string) []storage.Turn
	BackendLabel() string
}

// ToolSource reports the tool server connection.
type ToolSource interface {
	State() mcp.State
	Tools() []mcptypes.Tool
}

// UserCounter reports how many users have a conversation.
type UserCounter interface {
	Users() int
}

// Searcher finds turns in a user's history.
type Searcher interface {
	Search(userID, query string) []storage.TurnMatch
}

type Options struct {
	Chat Chat
	// Tools may be nil when the tool server is disabled.
	Tools    ToolSource
	Searcher Searcher
	Users    UserCounter
	// DriveConnected reports whether the Direct backend is configured.
	DriveConnected  bool
	UserHeader      string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

type Server struct {
	chat            Chat
	tools           ToolSource
	searcher        Searcher
	users           UserCounter
	driveConnected  bool
	userHeader      string
	shutdownTimeout time.Duration
	logger          *slog.Logger
	started         time.Time
	upgrader        websocket.Upgrader
	router          chi.Router

	mu      sync.Mutex
	sockets map[*websocket.Conn]struct{}
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		chat:            opts.Chat,
		tools:           opts.Tools,
		searcher:        opts.Searcher,
		users:           opts.Users,
		driveConnected:  opts.DriveConnected,
		userHeader:      opts.UserHeader,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger.With("component", "server"),
		started:         time.Now(),
		sockets:         make(map[*websocket.Conn]struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/mcp/tools", s.handleTools)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/prompts", s.handlePrompts)
			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)
				r.Get("/history", s.handleHistory)
				r.Post("/message", s.handleMessage)
			})
		})
	})

	r.Get("/ws", s.handleWebsocket)

	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.closeSockets()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
