package mcp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	protocolVersion = "2025-06-18"
	closeTimeout    = 1 * time.Second
)

// ClientInfo identifies this program to the tool server during the handshake.
type ClientInfo struct {
	Name    string
	Version string
}

// stdioSession is a tool server subprocess driven by the mcp-go stdio client.
type stdioSession struct {
	client *client.Client
	cmd    *exec.Cmd
	info   ClientInfo
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// StdioLauncher spawns the strategy command and talks MCP over its stdin and
// stdout. Server stderr is logged at debug level; its end marks process exit.
func StdioLauncher(info ClientInfo, logger *slog.Logger) Launcher {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, s Strategy) (Session, error) {
		var capturedCmd *exec.Cmd

		cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
			cmd := exec.CommandContext(ctx, command, args...)
			cmd.Env = env
			capturedCmd = cmd
			return cmd, nil
		}

		mcpClient, err := client.NewStdioMCPClientWithOptions(
			s.Command,
			s.Environ(),
			s.Args,
			transport.WithCommandFunc(cmdFunc),
		)
		if err != nil {
			return nil, err
		}

		sess := &stdioSession{
			client: mcpClient,
			cmd:    capturedCmd,
			info:   info,
			logger: logger.With("strategy", s.String()),
		}

		if capturedCmd != nil && capturedCmd.Process != nil {
			sess.logger.Debug("spawned tool server", "pid", capturedCmd.Process.Pid)
		}

		if stderr, ok := client.GetStderr(mcpClient); ok {
			sess.done = make(chan struct{})
			go sess.drainStderr(stderr)
		}

		return sess, nil
	}
}

func (s *stdioSession) drainStderr(stderr io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.logger.Debug("tool server stderr", "line", scanner.Text())
	}
}

func (s *stdioSession) Initialize(ctx context.Context) error {
	req := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    s.info.Name,
				Version: s.info.Version,
			},
		},
	}
	_, err := s.client.Initialize(ctx, req)
	return err
}

func (s *stdioSession) ListTools(ctx context.Context) ([]mcptypes.Tool, error) {
	res, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

func (s *stdioSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

// Close gives the client a second to shut down cleanly, then kills the
// process regardless.
func (s *stdioSession) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		closeDone := make(chan error, 1)
		go func() {
			closeDone <- s.client.Close()
		}()

		select {
		case closeErr = <-closeDone:
		case <-time.After(closeTimeout):
			s.logger.Debug("client close timed out, killing process")
		}

		if s.cmd != nil && s.cmd.Process != nil {
			if err := s.cmd.Process.Kill(); err != nil {
				s.logger.Debug("kill after close", "error", err)
			}
		}
	})

	return closeErr
}

func (s *stdioSession) Done() <-chan struct{} {
	return s.done
}
