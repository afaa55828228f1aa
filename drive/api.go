package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	listFields   = "files(id,name,mimeType,size,modifiedTime,parents)"
	fileFields   = "id,name,mimeType,size,modifiedTime,parents"
	listOrder    = "folder,name"
	readLimit    = 1 << 20
	DefaultLimit = 50
)

// Credentials selects how the Direct backend authenticates. A service account
// key wins over an OAuth client.
type Credentials struct {
	ServiceAccountJSON []byte
	ClientID           string
	ClientSecret       string
	RefreshToken       string
}

func (c Credentials) Configured() bool {
	return len(c.ServiceAccountJSON) > 0 || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// ClientOptions builds the API client options for the configured credentials.
func ClientOptions(ctx context.Context, creds Credentials) ([]option.ClientOption, error) {
	switch {
	case len(creds.ServiceAccountJSON) > 0:
		gc, err := google.CredentialsFromJSON(ctx, creds.ServiceAccountJSON, gdrive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account key: %w", err)
		}
		return []option.ClientOption{option.WithCredentials(gc)}, nil

	case creds.ClientID != "" && creds.ClientSecret != "" && creds.RefreshToken != "":
		cfg := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gdrive.DriveScope},
		}
		ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}

	return nil, ErrNoCredentials
}

// API is the Direct backend. It issues one request per operation and does
// not retry.
type API struct {
	svc     *gdrive.Service
	timeout time.Duration
	logger  *slog.Logger
}

func NewAPI(ctx context.Context, timeout time.Duration, logger *slog.Logger, opts ...option.ClientOption) (*API, error) {
	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		svc:     svc,
		timeout: timeout,
		logger:  logger.With("component", "drive"),
	}, nil
}

func (a *API) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *API) list(ctx context.Context, op, q string, pageSize int) Result[[]FileRecord] {
	if pageSize <= 0 {
		pageSize = DefaultLimit
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	a.logger.Debug("listing files", "op", op, "q", q, "page_size", pageSize)

	resp, err := a.svc.Files.List().
		Q(q).
		PageSize(int64(pageSize)).
		Fields(listFields).
		OrderBy(listOrder).
		Context(ctx).
		Do()
	if err != nil {
		return Failure[[]FileRecord](&OperationError{Op: op, Err: err})
	}

	records := make([]FileRecord, 0, len(resp.Files))
	for _, f := range resp.Files {
		records = append(records, fromAPI(f))
	}
	return Success(records)
}

func (a *API) Search(ctx context.Context, term string, pageSize int) Result[[]FileRecord] {
	return a.list(ctx, "search", SearchQuery(term), pageSize)
}

func (a *API) Shared(ctx context.Context, pageSize int) Result[[]FileRecord] {
	return a.list(ctx, "shared", SharedQuery(), pageSize)
}

func (a *API) List(ctx context.Context, folderID string, pageSize int) Result[[]FileRecord] {
	if folderID == "" {
		folderID = "root"
	}
	return a.list(ctx, "list", FolderQuery(folderID), pageSize)
}

// Read returns the file as text. Google Workspace files are exported as
// plain text, anything else is downloaded as is.
func (a *API) Read(ctx context.Context, fileID string) Result[string] {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	meta, err := a.svc.Files.Get(fileID).Fields("id,mimeType").Context(ctx).Do()
	if err != nil {
		return Failure[string](&OperationError{Op: "read", Err: err})
	}

	var body io.ReadCloser
	switch {
	case strings.HasPrefix(meta.MimeType, "application/vnd.google-apps."):
		resp, err := a.svc.Files.Export(fileID, "text/plain").Context(ctx).Download()
		if err != nil {
			return Failure[string](&OperationError{Op: "read", Err: err})
		}
		body = resp.Body
	default:
		resp, err := a.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return Failure[string](&OperationError{Op: "read", Err: err})
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, readLimit))
	if err != nil {
		return Failure[string](&OperationError{Op: "read", Err: err})
	}
	return Success(string(data))
}

func (a *API) Download(ctx context.Context, fileID string) Result[[]byte] {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return Failure[[]byte](&OperationError{Op: "download", Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure[[]byte](&OperationError{Op: "download", Err: err})
	}
	return Success(data)
}

func (a *API) CreateFolder(ctx context.Context, name, parentID string) Result[FileRecord] {
	if parentID == "" {
		parentID = "root"
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	f, err := a.svc.Files.Create(&gdrive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return Failure[FileRecord](&OperationError{Op: "create folder", Err: err})
	}
	return Success(fromAPI(f))
}

func (a *API) Upload(ctx context.Context, up Upload) Result[FileRecord] {
	if up.Body == nil {
		return Failure[FileRecord](&OperationError{Op: "upload", Err: fmt.Errorf("no content for %q", up.Name)})
	}
	parentID := up.ParentID
	if parentID == "" {
		parentID = "root"
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var media []googleapi.MediaOption
	if up.MimeType != "" {
		media = append(media, googleapi.ContentType(up.MimeType))
	}

	f, err := a.svc.Files.Create(&gdrive.File{
		Name:     up.Name,
		MimeType: up.MimeType,
		Parents:  []string{parentID},
	}).Media(up.Body, media...).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return Failure[FileRecord](&OperationError{Op: "upload", Err: err})
	}
	return Success(fromAPI(f))
}

func (a *API) Delete(ctx context.Context, fileID string) Result[struct{}] {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return Failure[struct{}](&OperationError{Op: "delete", Err: err})
	}
	return Success(struct{}{})
}

// Ping checks that the API answers with the configured credentials.
func (a *API) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.svc.Files.List().PageSize(1).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return &OperationError{Op: "ping", Err: err}
	}
	return nil
}

func fromAPI(f *gdrive.File) FileRecord {
	rec := FileRecord{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
	}
	if f.Size > 0 {
		size := f.Size
		rec.Size = &size
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			rec.ModifiedTime = &t
		}
	}
	if len(f.Parents) > 0 {
		rec.Parents = append([]string(nil), f.Parents...)
	}
	return rec
}
