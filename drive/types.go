// Package drive holds the storage-facing types shared by both backends and the
// Direct backend that talks to the Drive v3 HTTP API.
package drive

import (
	"context"
	"io"
	"strings"
	"time"
)

// FolderMimeType is the MIME type Drive uses for folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// FileRecord is the metadata of one file as returned by a backend.
// ModifiedTime, Size and Parents are only set when the backend reports them.
type FileRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	MimeType     string     `json:"mimeType"`
	ModifiedTime *time.Time `json:"modifiedTime,omitempty"`
	Size         *int64     `json:"size,omitempty"`
	Parents      []string   `json:"parents,omitempty"`
}

func (f FileRecord) IsFolder() bool {
	return strings.Contains(f.MimeType, "folder")
}

// Upload describes a file to create with content.
type Upload struct {
	Name     string
	MimeType string
	ParentID string
	Body     io.Reader
}

// Backend is the set of logical storage operations. Every operation returns a
// Result carrying either its payload or the reason it failed.
type Backend interface {
	Search(ctx context.Context, term string, pageSize int) Result[[]FileRecord]
	Shared(ctx context.Context, pageSize int) Result[[]FileRecord]
	List(ctx context.Context, folderID string, pageSize int) Result[[]FileRecord]
	Read(ctx context.Context, fileID string) Result[string]
	Download(ctx context.Context, fileID string) Result[[]byte]
	CreateFolder(ctx context.Context, name, parentID string) Result[FileRecord]
	Upload(ctx context.Context, up Upload) Result[FileRecord]
	Delete(ctx context.Context, fileID string) Result[struct{}]
}
