package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdrivechat/drive"
	"gdrivechat/mcp"
)

type fakeInvoker struct {
	state mcp.State
	reply func(inv mcp.ToolInvocation) (*mcp.ToolResult, error)

	mu    sync.Mutex
	calls []mcp.ToolInvocation
}

func (f *fakeInvoker) State() mcp.State { return f.state }

func (f *fakeInvoker) InvokeTool(ctx context.Context, inv mcp.ToolInvocation) (*mcp.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.reply == nil {
		return &mcp.ToolResult{}, nil
	}
	return f.reply(inv)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeDirect answers every listing with the same records.
type fakeDirect struct {
	files []drive.FileRecord
	calls atomic.Int32
}

func (f *fakeDirect) Search(ctx context.Context, term string, pageSize int) drive.Result[[]drive.FileRecord] {
	f.calls.Add(1)
	return drive.Success(f.files)
}

func (f *fakeDirect) Shared(ctx context.Context, pageSize int) drive.Result[[]drive.FileRecord] {
	f.calls.Add(1)
	return drive.Success(f.files)
}

func (f *fakeDirect) List(ctx context.Context, folderID string, pageSize int) drive.Result[[]drive.FileRecord] {
	f.calls.Add(1)
	return drive.Success(f.files)
}

func (f *fakeDirect) Read(ctx context.Context, fileID string) drive.Result[string] {
	f.calls.Add(1)
	return drive.Success("direct content of " + fileID)
}

func (f *fakeDirect) Download(ctx context.Context, fileID string) drive.Result[[]byte] {
	f.calls.Add(1)
	return drive.Success([]byte("bytes"))
}

func (f *fakeDirect) CreateFolder(ctx context.Context, name, parentID string) drive.Result[drive.FileRecord] {
	f.calls.Add(1)
	return drive.Success(drive.FileRecord{ID: "new", Name: name, MimeType: drive.FolderMimeType})
}

func (f *fakeDirect) Upload(ctx context.Context, up drive.Upload) drive.Result[drive.FileRecord] {
	f.calls.Add(1)
	return drive.Success(drive.FileRecord{ID: "up", Name: up.Name})
}

func (f *fakeDirect) Delete(ctx context.Context, fileID string) drive.Result[struct{}] {
	f.calls.Add(1)
	return drive.Success(struct{}{})
}

const searchReply = "Found 2 files:\n" +
	"abc123 June Report.docx (application/vnd.google-apps.document)\n" +
	"def456 Budget (application/vnd.google-apps.spreadsheet)\n"

func TestProtocolToolArguments(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return &mcp.ToolResult{Text: searchReply}, nil
		},
	}
	p := NewProtocol(inv, nil)
	ctx := context.Background()

	files, err := p.Search(ctx, "june", 50).Unwrap()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "abc123", files[0].ID)
	assert.Equal(t, "June Report.docx", files[0].Name)

	p.Shared(ctx, 20)
	p.List(ctx, "", 10)
	p.Read(ctx, "abc123")

	require.Len(t, inv.calls, 4)
	assert.Equal(t, mcp.ToolInvocation{ToolName: SearchTool, Arguments: map[string]any{"query": "june", "pageSize": 50}}, inv.calls[0])
	assert.Equal(t, "sharedWithMe", inv.calls[1].Arguments["query"])
	assert.Equal(t, "'root' in parents", inv.calls[2].Arguments["query"])
	assert.Equal(t, 10, inv.calls[2].Arguments["pageSize"])
	assert.Equal(t, mcp.ToolInvocation{ToolName: ReadTool, Arguments: map[string]any{"fileId": "abc123"}}, inv.calls[3])
}

func TestProtocolUnsupportedOperations(t *testing.T) {
	inv := &fakeInvoker{state: mcp.StateConnected}
	p := NewProtocol(inv, nil)
	ctx := context.Background()

	assert.ErrorIs(t, p.CreateFolder(ctx, "Docs", "root").Reason(), drive.ErrUnsupported)
	assert.ErrorIs(t, p.Upload(ctx, drive.Upload{Name: "a.txt"}).Reason(), drive.ErrUnsupported)
	assert.ErrorIs(t, p.Delete(ctx, "abc").Reason(), drive.ErrUnsupported)
	assert.Zero(t, inv.callCount(), "unsupported operations must not reach the server")
}

func TestInitialSelection(t *testing.T) {
	connected := New(NewProtocol(&fakeInvoker{state: mcp.StateConnected}, nil), &fakeDirect{})
	assert.Equal(t, ActiveProtocol, connected.Selection().Active)

	failed := New(NewProtocol(&fakeInvoker{state: mcp.StateFailed}, nil), &fakeDirect{})
	assert.Equal(t, ActiveDirect, failed.Selection().Active)

	none := New(nil, &fakeDirect{})
	assert.Equal(t, ActiveDirect, none.Selection().Active)
	assert.True(t, none.Available())

	nothing := New(nil, nil)
	assert.False(t, nothing.Available())
}

func TestFallbackOnConnectorFailure(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return nil, &mcp.ConnectorError{Op: "call gdrive_search", Err: errors.New("broken pipe")}
		},
	}
	direct := &fakeDirect{files: []drive.FileRecord{{ID: "d1", Name: "June Report", MimeType: "application/pdf"}}}
	d := New(NewProtocol(inv, nil), direct)
	ctx := context.Background()

	files, err := d.Search(ctx, "june", 50).Unwrap()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "d1", files[0].ID)

	sel := d.Selection()
	assert.Equal(t, ActiveDirect, sel.Active)
	assert.Contains(t, sel.Reason, "broken pipe")
	assert.Equal(t, "direct", d.Label())

	_, err = d.Search(ctx, "june", 50).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 1, inv.callCount(), "protocol must not be tried after the fallback")
	assert.EqualValues(t, 2, direct.calls.Load())
}

func TestFallbackOnNotConnected(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return nil, mcp.ErrNotConnected
		},
	}
	d := New(NewProtocol(inv, nil), &fakeDirect{})

	require.True(t, d.Read(context.Background(), "x").OK())
	assert.Equal(t, ActiveDirect, d.Selection().Active)
}

func TestToolErrorDoesNotFlip(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return nil, &mcp.ToolError{Tool: ReadTool, Message: "file not found"}
		},
	}
	direct := &fakeDirect{}
	d := New(NewProtocol(inv, nil), direct)

	res := d.Read(context.Background(), "missing")
	require.False(t, res.OK())

	var toolErr *mcp.ToolError
	assert.ErrorAs(t, res.Reason(), &toolErr)
	assert.Equal(t, ActiveProtocol, d.Selection().Active)
	assert.Zero(t, direct.calls.Load())
}

func TestUnsupportedRoutesToDirectWithoutFlipping(t *testing.T) {
	inv := &fakeInvoker{state: mcp.StateConnected}
	direct := &fakeDirect{}
	d := New(NewProtocol(inv, nil), direct)

	folder, err := d.CreateFolder(context.Background(), "Reports", "root").Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "Reports", folder.Name)
	assert.Equal(t, ActiveProtocol, d.Selection().Active)
	assert.EqualValues(t, 1, direct.calls.Load())
}

func TestUnsupportedWithoutDirect(t *testing.T) {
	d := New(NewProtocol(&fakeInvoker{state: mcp.StateConnected}, nil), nil)

	res := d.Delete(context.Background(), "abc")
	assert.ErrorIs(t, res.Reason(), drive.ErrUnsupported)
}

func TestNoDirectBackend(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return nil, mcp.ErrNotConnected
		},
	}
	d := New(NewProtocol(inv, nil), nil)

	res := d.Search(context.Background(), "june", 10)
	assert.ErrorIs(t, res.Reason(), ErrNoBackend)
	assert.Equal(t, ActiveDirect, d.Selection().Active)
	assert.False(t, d.Available())

	res = New(nil, nil).List(context.Background(), "root", 10)
	assert.ErrorIs(t, res.Reason(), ErrNoBackend)
}

func TestFlipHappensOnce(t *testing.T) {
	d := New(NewProtocol(&fakeInvoker{state: mcp.StateConnected}, nil), &fakeDirect{})

	var wg sync.WaitGroup
	var flips atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Flip("test") {
				flips.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, flips.Load())
	assert.Equal(t, ActiveDirect, d.Selection().Active)
}

func TestConcurrentFailuresServeEveryRequest(t *testing.T) {
	inv := &fakeInvoker{
		state: mcp.StateConnected,
		reply: func(mcp.ToolInvocation) (*mcp.ToolResult, error) {
			return nil, &mcp.ConnectorError{Op: "call", Err: errors.New("eof")}
		},
	}
	direct := &fakeDirect{}
	d := New(NewProtocol(inv, nil), direct)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Shared(context.Background(), 20).OK() {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.EqualValues(t, 8, direct.calls.Load())
	assert.Equal(t, ActiveDirect, d.Selection().Active)
}
