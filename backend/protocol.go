// Package backend serves Drive operations from the tool server when it is up
// and from the Drive API otherwise.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gdrivechat/drive"
	"gdrivechat/mcp"
	"gdrivechat/render"
)

// Tool names exposed by the Drive tool server.
const (
	SearchTool = "gdrive_search"
	ReadTool   = "gdrive_read_file"
)

// ToolInvoker is the part of the connector the Protocol backend needs.
type ToolInvoker interface {
	State() mcp.State
	InvokeTool(ctx context.Context, inv mcp.ToolInvocation) (*mcp.ToolResult, error)
}

// Protocol implements drive.Backend on top of the tool server. It only has
// search and read tools; everything else fails with drive.ErrUnsupported.
type Protocol struct {
	conn   ToolInvoker
	logger *slog.Logger
}

func NewProtocol(conn ToolInvoker, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{conn: conn, logger: logger.With("component", "protocol")}
}

func (p *Protocol) Connected() bool {
	return p.conn != nil && p.conn.State() == mcp.StateConnected
}

func (p *Protocol) call(ctx context.Context, op string, inv mcp.ToolInvocation) (*mcp.ToolResult, error) {
	if p.conn == nil {
		return nil, &drive.OperationError{Op: op, Err: mcp.ErrNotConnected}
	}
	res, err := p.conn.InvokeTool(ctx, inv)
	if err != nil {
		return nil, &drive.OperationError{Op: op, Err: err}
	}
	return res, nil
}

func (p *Protocol) search(ctx context.Context, op, query string, pageSize int) drive.Result[[]drive.FileRecord] {
	if pageSize <= 0 {
		pageSize = drive.DefaultLimit
	}
	res, err := p.call(ctx, op, mcp.ToolInvocation{
		ToolName: SearchTool,
		Arguments: map[string]any{
			"query":    query,
			"pageSize": pageSize,
		},
	})
	if err != nil {
		return drive.Failure[[]drive.FileRecord](err)
	}

	files := render.ParseSearchText(res.Text)
	p.logger.Debug("search parsed", "op", op, "query", query, "files", len(files))
	return drive.Success(files)
}

func (p *Protocol) Search(ctx context.Context, term string, pageSize int) drive.Result[[]drive.FileRecord] {
	return p.search(ctx, "search", term, pageSize)
}

func (p *Protocol) Shared(ctx context.Context, pageSize int) drive.Result[[]drive.FileRecord] {
	return p.search(ctx, "shared", "sharedWithMe", pageSize)
}

func (p *Protocol) List(ctx context.Context, folderID string, pageSize int) drive.Result[[]drive.FileRecord] {
	if folderID == "" {
		folderID = "root"
	}
	return p.search(ctx, "list", fmt.Sprintf("'%s' in parents", folderID), pageSize)
}

func (p *Protocol) Read(ctx context.Context, fileID string) drive.Result[string] {
	res, err := p.call(ctx, "read", mcp.ToolInvocation{
		ToolName:  ReadTool,
		Arguments: map[string]any{"fileId": fileID},
	})
	if err != nil {
		return drive.Failure[string](err)
	}
	return drive.Success(res.Text)
}

func (p *Protocol) Download(ctx context.Context, fileID string) drive.Result[[]byte] {
	text, err := p.Read(ctx, fileID).Unwrap()
	if err != nil {
		return drive.Failure[[]byte](err)
	}
	return drive.Success([]byte(text))
}

func unsupported(tool string) error {
	return fmt.Errorf("%w: tool %q is not provided by %s", drive.ErrUnsupported, tool, mcp.DefaultPackage)
}

func (p *Protocol) CreateFolder(ctx context.Context, name, parentID string) drive.Result[drive.FileRecord] {
	return drive.Failure[drive.FileRecord](unsupported("gdrive_create_folder"))
}

func (p *Protocol) Upload(ctx context.Context, up drive.Upload) drive.Result[drive.FileRecord] {
	return drive.Failure[drive.FileRecord](unsupported("gdrive_upload_file"))
}

func (p *Protocol) Delete(ctx context.Context, fileID string) drive.Result[struct{}] {
	return drive.Failure[struct{}](unsupported("gdrive_delete_file"))
}
