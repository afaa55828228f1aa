package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gdrivechat/drive"
	"gdrivechat/mcp"
)

// ErrNoBackend is returned when the Direct backend is needed but was never
// configured.
var ErrNoBackend = errors.New("no drive backend available")

type Active string

const (
	ActiveProtocol Active = "protocol"
	ActiveDirect   Active = "direct"
)

// Selection records which backend serves requests and why.
type Selection struct {
	Active Active
	Reason string
	At     time.Time
}

// Dispatcher routes each operation to the selected backend. Once the
// Protocol backend fails at the connector level the selection moves to
// Direct and never moves back.
type Dispatcher struct {
	protocol  *Protocol
	direct    drive.Backend
	selection atomic.Pointer[Selection]
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New builds a dispatcher. Either backend may be nil. Protocol is selected
// only if its connector is connected right now.
func New(protocol *Protocol, direct drive.Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		protocol: protocol,
		direct:   direct,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")

	sel := &Selection{Active: ActiveDirect, Reason: "tool server not connected", At: time.Now()}
	if protocol != nil && protocol.Connected() {
		sel = &Selection{Active: ActiveProtocol, Reason: "tool server connected", At: time.Now()}
	}
	d.selection.Store(sel)
	d.logger.Info("backend selected", "backend", sel.Active, "reason", sel.Reason)
	return d
}

func (d *Dispatcher) Selection() Selection {
	return *d.selection.Load()
}

// Label names the backend that will serve the next request.
func (d *Dispatcher) Label() string {
	return string(d.Selection().Active)
}

// Available reports whether any backend can serve requests.
func (d *Dispatcher) Available() bool {
	if d.Selection().Active == ActiveProtocol {
		return true
	}
	return d.direct != nil
}

// HasDirect reports whether the Direct backend is configured.
func (d *Dispatcher) HasDirect() bool {
	return d.direct != nil
}

// Flip moves the selection to Direct. It returns false if Direct was
// already selected.
func (d *Dispatcher) Flip(reason string) bool {
	for {
		cur := d.selection.Load()
		if cur.Active == ActiveDirect {
			return false
		}
		next := &Selection{Active: ActiveDirect, Reason: reason, At: time.Now()}
		if d.selection.CompareAndSwap(cur, next) {
			d.logger.Warn("falling back to direct backend", "reason", reason)
			return true
		}
	}
}

func dispatch[T any](d *Dispatcher, op string, call func(drive.Backend) drive.Result[T]) drive.Result[T] {
	var unsupportedRes *drive.Result[T]

	if d.Selection().Active == ActiveProtocol && d.protocol != nil {
		res := call(d.protocol)
		if res.OK() {
			return res
		}

		reason := res.Reason()
		switch {
		case errors.Is(reason, drive.ErrUnsupported):
			d.logger.Debug("operation not available on tool server, using direct", "op", op)
			unsupportedRes = &res
		case mcp.IsConnectorFailure(reason):
			d.Flip(fmt.Sprintf("%s failed on tool server: %v", op, reason))
		default:
			return res
		}
	}

	if d.direct == nil {
		if unsupportedRes != nil {
			return *unsupportedRes
		}
		return drive.Failure[T](ErrNoBackend)
	}
	return call(d.direct)
}

func (d *Dispatcher) Search(ctx context.Context, term string, pageSize int) drive.Result[[]drive.FileRecord] {
	return dispatch(d, "search", func(b drive.Backend) drive.Result[[]drive.FileRecord] {
		return b.Search(ctx, term, pageSize)
	})
}

func (d *Dispatcher) Shared(ctx context.Context, pageSize int) drive.Result[[]drive.FileRecord] {
	return dispatch(d, "shared", func(b drive.Backend) drive.Result[[]drive.FileRecord] {
		return b.Shared(ctx, pageSize)
	})
}

func (d *Dispatcher) List(ctx context.Context, folderID string, pageSize int) drive.Result[[]drive.FileRecord] {
	return dispatch(d, "list", func(b drive.Backend) drive.Result[[]drive.FileRecord] {
		return b.List(ctx, folderID, pageSize)
	})
}

func (d *Dispatcher) Read(ctx context.Context, fileID string) drive.Result[string] {
	return dispatch(d, "read", func(b drive.Backend) drive.Result[string] {
		return b.Read(ctx, fileID)
	})
}

func (d *Dispatcher) Download(ctx context.Context, fileID string) drive.Result[[]byte] {
	return dispatch(d, "download", func(b drive.Backend) drive.Result[[]byte] {
		return b.Download(ctx, fileID)
	})
}

func (d *Dispatcher) CreateFolder(ctx context.Context, name, parentID string) drive.Result[drive.FileRecord] {
	return dispatch(d, "create folder", func(b drive.Backend) drive.Result[drive.FileRecord] {
		return b.CreateFolder(ctx, name, parentID)
	})
}

func (d *Dispatcher) Upload(ctx context.Context, up drive.Upload) drive.Result[drive.FileRecord] {
	return dispatch(d, "upload", func(b drive.Backend) drive.Result[drive.FileRecord] {
		return b.Upload(ctx, up)
	})
}

func (d *Dispatcher) Delete(ctx context.Context, fileID string) drive.Result[struct{}] {
	return dispatch(d, "delete", func(b drive.Backend) drive.Result[struct{}] {
		return b.Delete(ctx, fileID)
	})
}
