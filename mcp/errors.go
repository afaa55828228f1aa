package mcp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConnected       = errors.New("tool server not connected")
	ErrConnectInProgress  = errors.New("connect already in progress")
	ErrNoLaunchStrategies = errors.New("no launch strategies available")
)

// ConnectorError is a spawn, handshake or transport failure.
type ConnectorError struct {
	Op       string
	Strategy string
	Err      error
}

func (e *ConnectorError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("mcp %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mcp %s (%s): %v", e.Op, e.Strategy, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// ConnectError reports that every launch strategy failed.
type ConnectError struct {
	Attempts []error
}

func (e *ConnectError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrNoLaunchStrategies.Error()
	}
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all %d launch strategies failed: %s", len(e.Attempts), strings.Join(msgs, "; "))
}

func (e *ConnectError) Unwrap() []error {
	if len(e.Attempts) == 0 {
		return []error{ErrNoLaunchStrategies}
	}
	return e.Attempts
}

// ToolError is an error reported by the tool itself. The connection is fine.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s failed", e.Tool)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// IsConnectorFailure reports whether err means the tool server itself is
// unusable, as opposed to a single tool call going wrong.
func IsConnectorFailure(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectorError
	var connectErr *ConnectError
	return errors.Is(err, ErrNotConnected) ||
		errors.As(err, &connErr) ||
		errors.As(err, &connectErr)
}
