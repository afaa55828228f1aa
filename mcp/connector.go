// Package mcp supervises the Drive tool server subprocess and speaks the
// Model Context Protocol to it over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultCallTimeout      = 30 * time.Second
)

// Connector owns at most one tool server process. It walks the launch
// strategies in order until one completes the handshake, and never
// reconnects on its own.
type Connector struct {
	strategies       []Strategy
	launch           Launcher
	handshakeTimeout time.Duration
	callTimeout      time.Duration
	observer         Observer
	logger           *slog.Logger

	connecting atomic.Bool

	mu        sync.RWMutex
	state     State
	session   Session
	winner    *Strategy
	tools     []mcptypes.Tool
	stopWatch chan struct{}
}

type Option func(*Connector)

func WithLauncher(l Launcher) Option {
	return func(c *Connector) { c.launch = l }
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Connector) { c.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewConnector(strategies []Strategy, opts ...Option) *Connector {
	c := &Connector{
		strategies:       append([]Strategy(nil), strategies...),
		handshakeTimeout: DefaultHandshakeTimeout,
		callTimeout:      DefaultCallTimeout,
		logger:           slog.Default(),
		state:            StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "mcp")
	if c.launch == nil {
		c.launch = StdioLauncher(ClientInfo{Name: "gdrivechat", Version: "1.0.0"}, c.logger)
	}
	return c
}

func (c *Connector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connector) Connected() bool {
	return c.State() == StateConnected
}

// Tools returns the tools the server listed during connect.
func (c *Connector) Tools() []mcptypes.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mcptypes.Tool(nil), c.tools...)
}

// Strategy returns the strategy that produced the current connection.
func (c *Connector) Strategy() (Strategy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.winner == nil {
		return Strategy{}, false
	}
	return *c.winner, true
}

func (c *Connector) Strategies() []Strategy {
	return append([]Strategy(nil), c.strategies...)
}

func (c *Connector) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect tries each launch strategy in order. Failed attempts are torn down
// before the next one starts. A connect that is already running makes this
// call fail with ErrConnectInProgress.
func (c *Connector) Connect(ctx context.Context) error {
	if !c.connecting.CompareAndSwap(false, true) {
		return ErrConnectInProgress
	}
	defer c.connecting.Store(false)

	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	var attempts []error
	for i, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, &ConnectorError{Op: "connect", Strategy: s.String(), Err: err})
			break
		}

		start := time.Now()
		c.logger.Info("launching tool server", "strategy", s.String(), "attempt", i+1, "of", len(c.strategies))
		c.emit(Event{Kind: EventAttemptStarted, Strategy: s.String(), Attempt: i + 1})

		sess, tools, err := c.attempt(ctx, s)
		if err != nil {
			attempts = append(attempts, err)
			c.logger.Warn("launch strategy failed", "strategy", s.String(), "error", err)
			c.emit(Event{Kind: EventAttemptFailed, Strategy: s.String(), Attempt: i + 1, Err: err, Duration: time.Since(start)})
			continue
		}

		winner := s
		stop := make(chan struct{})

		c.mu.Lock()
		c.session = sess
		c.winner = &winner
		c.tools = tools
		c.state = StateConnected
		c.stopWatch = stop
		c.mu.Unlock()

		if done := sess.Done(); done != nil {
			go c.watch(sess, done, stop)
		}

		c.logger.Info("connected to tool server", "strategy", s.String(), "tools", len(tools))
		c.emit(Event{Kind: EventConnected, Strategy: s.String(), Attempt: i + 1, Duration: time.Since(start)})
		return nil
	}

	c.setState(StateFailed)
	err := &ConnectError{Attempts: attempts}
	c.logger.Error("could not start tool server", "error", err)
	c.emit(Event{Kind: EventConnectFailed, Err: err})
	return err
}

func (c *Connector) attempt(ctx context.Context, s Strategy) (Session, []mcptypes.Tool, error) {
	sess, err := c.launch(ctx, s)
	if err != nil {
		return nil, nil, &ConnectorError{Op: "spawn", Strategy: s.String(), Err: err}
	}

	hctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	if err := sess.Initialize(hctx); err != nil {
		c.terminate(sess)
		return nil, nil, &ConnectorError{Op: "handshake", Strategy: s.String(), Err: err}
	}

	lctx, lcancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer lcancel()

	tools, err := sess.ListTools(lctx)
	if err != nil {
		// Tool listing is optional.
		c.logger.Warn("tool listing failed", "strategy", s.String(), "error", err)
		tools = nil
	}

	return sess, tools, nil
}

func (c *Connector) terminate(sess Session) {
	if err := sess.Close(); err != nil {
		c.logger.Debug("closing tool server", "error", err)
	}
}

// watch moves the connector to Disconnected when the process behind the
// current session exits.
func (c *Connector) watch(sess Session, done <-chan struct{}, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-done:
	}

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	c.state = StateDisconnected
	c.mu.Unlock()

	c.terminate(sess)
	c.logger.Warn("tool server exited")
	c.emit(Event{Kind: EventProcessExited})
}

// detachLocked drops the current session. c.mu must be held.
func (c *Connector) detachLocked() {
	c.session = nil
	if c.stopWatch != nil {
		close(c.stopWatch)
		c.stopWatch = nil
	}
}

// InvokeTool calls a tool on the connected server. Without a connection it
// fails with ErrNotConnected and sends nothing. A broken transport or an
// expired call timeout moves the connector to Failed. When the caller's own
// context ends first, the call is abandoned and the connection is kept.
func (c *Connector) InvokeTool(ctx context.Context, inv ToolInvocation) (*ToolResult, error) {
	c.mu.RLock()
	sess, state := c.session, c.state
	c.mu.RUnlock()

	if state != StateConnected || sess == nil {
		return nil, ErrNotConnected
	}

	callerCtx := ctx
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	c.logger.Debug("calling tool", "tool", inv.ToolName, "args", inv.Arguments)

	res, err := sess.CallTool(ctx, inv.ToolName, inv.Arguments)
	if err != nil {
		if callerErr := callerCtx.Err(); callerErr != nil {
			c.logger.Debug("tool call abandoned", "tool", inv.ToolName, "error", callerErr)
			return nil, fmt.Errorf("call %s abandoned: %w", inv.ToolName, callerErr)
		}
		c.fail(sess, err)
		return nil, &ConnectorError{Op: "call " + inv.ToolName, Err: err}
	}
	if res == nil {
		return &ToolResult{}, nil
	}
	if res.IsError {
		return nil, &ToolError{Tool: inv.ToolName, Message: firstText(res)}
	}
	return newToolResult(res), nil
}

func (c *Connector) fail(sess Session, cause error) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	c.state = StateFailed
	c.mu.Unlock()

	c.terminate(sess)
	c.logger.Error("tool server transport failed", "error", cause)
	c.emit(Event{Kind: EventTransportFailed, Err: cause})
}

// Disconnect closes the current session if there is one. It is safe to call
// at any time and more than once.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	if sess == nil {
		c.mu.Unlock()
		return nil
	}
	c.detachLocked()
	c.state = StateDisconnected
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.terminate(sess)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.logger.Info("disconnected from tool server")
	c.emit(Event{Kind: EventDisconnected})
	return nil
}
