package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"gdrivechat/backend"
	"gdrivechat/chat"
	"gdrivechat/config"
	"gdrivechat/drive"
	"gdrivechat/mcp"
	"gdrivechat/storage"
)

// app holds the wired components every command works with.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	launches   *storage.LaunchStore
	connector  *mcp.Connector
	direct     *drive.API
	dispatcher *backend.Dispatcher
	store      *storage.ConversationStore
	search     *storage.SearchIndex
	chat       *chat.Service

	mu       sync.Mutex
	outcomes []storage.LaunchOutcome
}

type appOptions struct {
	// connect starts the tool server when it is enabled in settings.
	connect bool
	// logOutput receives console logs; debug mode logs to a file instead.
	logOutput io.Writer
}

func newApp(ctx context.Context, globals *Globals, opts appOptions) (*app, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}
	if globals.LogLevel != "" {
		cfg.LogLevel = globals.LogLevel
	}

	if opts.logOutput == nil {
		opts.logOutput = os.Stderr
	}
	logger, closer, err := config.NewLogger(cfg, opts.logOutput)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, logCloser: closer}

	a.launches, err = storage.OpenLaunchStore(cfg.DataDir())
	if err != nil {
		logger.Warn("launch history unavailable", "error", err)
	}

	if cfg.MCP.Enabled && opts.connect {
		a.connectToolServer(ctx)
	}

	if err := a.openDirect(ctx); err != nil {
		logger.Warn("Drive API backend unavailable", "error", err)
	}

	var protocol *backend.Protocol
	if a.connector != nil {
		protocol = backend.NewProtocol(a.connector, logger)
	}

	// A nil *drive.API must not become a non-nil interface.
	var direct drive.Backend
	if a.direct != nil {
		direct = a.direct
	}

	a.dispatcher = backend.New(protocol, direct, backend.WithLogger(logger))
	a.store = storage.NewConversationStore(cfg.HistoryLimit)
	a.search = storage.NewSearchIndex(a.store)
	a.chat = chat.NewService(a.dispatcher, a.store, logger)

	logger.Info("ready",
		"backend", a.dispatcher.Label(),
		"mcp", a.toolState(),
		"drive_api", a.direct != nil,
	)

	return a, nil
}

func (a *app) discovery() mcp.Discovery {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	d := mcp.NewDiscovery(wd, mcp.CredentialEnv(a.cfg.Google.ClientID, a.cfg.Google.ClientSecret, a.cfg.CredsDir()))
	d.Package = a.cfg.MCP.Package
	d.ServerDir = a.serverDir()
	d.Explicit = a.cfg.LaunchStrategies()
	return d
}

// serverDir is the private npm prefix the install command writes to.
func (a *app) serverDir() string {
	return filepath.Join(a.cfg.DataDir(), "server")
}

func (a *app) connectToolServer(ctx context.Context) {
	strategies := a.discovery().Strategies()

	a.connector = mcp.NewConnector(strategies,
		mcp.WithLauncher(mcp.StdioLauncher(mcp.ClientInfo{Name: "gdrivechat", Version: Version}, a.logger)),
		mcp.WithHandshakeTimeout(a.cfg.MCP.HandshakeTimeout.Std()),
		mcp.WithCallTimeout(a.cfg.MCP.CallTimeout.Std()),
		mcp.WithObserver(a.observe),
		mcp.WithLogger(a.logger),
	)

	if err := a.connector.Connect(ctx); err != nil {
		a.logger.Warn("tool server unavailable, using the Drive API", "error", err)
	}

	a.flushOutcomes(ctx)
}

// observe collects launch outcomes; they are written once Connect returns
// since the observer must not block.
func (a *app) observe(ev mcp.Event) {
	switch ev.Kind {
	case mcp.EventAttemptFailed, mcp.EventConnected:
		o := storage.LaunchOutcome{
			Strategy:  ev.Strategy,
			Attempt:   ev.Attempt,
			Succeeded: ev.Kind == mcp.EventConnected,
			Duration:  ev.Duration,
			At:        time.Now(),
		}
		if ev.Err != nil {
			o.Error = ev.Err.Error()
		}
		a.mu.Lock()
		a.outcomes = append(a.outcomes, o)
		a.mu.Unlock()
	case mcp.EventProcessExited, mcp.EventTransportFailed:
		a.logger.Warn("tool server lost", "event", string(ev.Kind), "strategy", ev.Strategy, "error", ev.Err)
	}
}

func (a *app) flushOutcomes(ctx context.Context) {
	a.mu.Lock()
	outcomes := a.outcomes
	a.outcomes = nil
	a.mu.Unlock()

	if a.launches == nil {
		return
	}
	for _, o := range outcomes {
		if err := a.launches.Record(ctx, o); err != nil {
			a.logger.Warn("failed to record launch attempt", "strategy", o.Strategy, "error", err)
		}
	}
}

func (a *app) openDirect(ctx context.Context) error {
	creds, err := a.cfg.DriveCredentials()
	if err != nil {
		return err
	}
	if !creds.Configured() {
		a.logger.Debug("no Google credentials configured, Drive API backend disabled")
		return nil
	}

	opts, err := drive.ClientOptions(ctx, creds)
	if err != nil {
		return err
	}
	a.direct, err = drive.NewAPI(ctx, a.cfg.Google.RequestTimeout.Std(), a.logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Drive client: %w", err)
	}
	return nil
}

func (a *app) toolState() string {
	if a.connector == nil {
		if !a.cfg.MCP.Enabled {
			return "disabled"
		}
		return mcp.StateDisconnected.String()
	}
	return a.connector.State().String()
}

func (a *app) userID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

func (a *app) Close() {
	if a.connector != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.connector.Disconnect(ctx); err != nil {
			a.logger.Warn("failed to stop tool server", "error", err)
		}
		cancel()
	}
	if a.launches != nil {
		if err := a.launches.Close(); err != nil {
			a.logger.Warn("failed to close launch history", "error", err)
		}
	}
	_ = a.logCloser.Close()
}
