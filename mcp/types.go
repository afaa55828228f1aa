package mcp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Strategy is one way of launching the tool server.
type Strategy struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

func (s Strategy) String() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// Environ returns the process environment with the strategy overrides
// appended in key order.
func (s Strategy) Environ() []string {
	env := os.Environ()

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, s.Env[k]))
	}
	return env
}

type ToolInvocation struct {
	ToolName  string
	Arguments map[string]any
}

// ToolResult is the useful part of a tool reply: the first text block and
// any structured payload.
type ToolResult struct {
	Text       string
	Structured any
	Raw        *mcptypes.CallToolResult
}

func newToolResult(res *mcptypes.CallToolResult) *ToolResult {
	return &ToolResult{
		Text:       firstText(res),
		Structured: res.StructuredContent,
		Raw:        res,
	}
}

func firstText(res *mcptypes.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcptypes.TextContent:
			return tc.Text
		case *mcptypes.TextContent:
			return tc.Text
		}
	}
	return ""
}

// Session is one running tool server reachable over its transport.
type Session interface {
	Initialize(ctx context.Context) error
	ListTools(ctx context.Context) ([]mcptypes.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
	// Close shuts the transport down and terminates the process.
	Close() error
	// Done is closed when the process exits. It may be nil when exit cannot
	// be observed.
	Done() <-chan struct{}
}

// Launcher spawns the tool server for a strategy.
type Launcher func(ctx context.Context, s Strategy) (Session, error)

type EventKind string

const (
	EventAttemptStarted  EventKind = "attempt_started"
	EventAttemptFailed   EventKind = "attempt_failed"
	EventConnected       EventKind = "connected"
	EventConnectFailed   EventKind = "connect_failed"
	EventDisconnected    EventKind = "disconnected"
	EventProcessExited   EventKind = "process_exited"
	EventTransportFailed EventKind = "transport_failed"
)

type Event struct {
	Kind     EventKind
	Strategy string
	Attempt  int
	Err      error
	Duration time.Duration
}

// Observer receives connector events. It is called synchronously and must
// not block.
type Observer func(Event)
