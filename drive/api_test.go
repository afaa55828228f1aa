package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestAPI(t *testing.T, h http.HandlerFunc) *API {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	api, err := NewAPI(context.Background(), 5*time.Second, nil,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return api
}

func TestListBuildsFolderQuery(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "'root' in parents and trashed=false", q.Get("q"))
		assert.Equal(t, "folder,name", q.Get("orderBy"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, listFields, q.Get("fields"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"f1","name":"Reports","mimeType":"application/vnd.google-apps.folder"},
			{"id":"d1","name":"June Report","mimeType":"application/pdf","size":"1536",
			 "modifiedTime":"2024-06-30T12:00:00.000Z","parents":["root"]}
		]}`))
	})

	res := api.List(context.Background(), "", 10)
	require.True(t, res.OK(), "reason: %v", res.Reason())

	files := res.Payload()
	require.Len(t, files, 2)
	assert.True(t, files[0].IsFolder())
	assert.Nil(t, files[0].Size)

	assert.Equal(t, "d1", files[1].ID)
	require.NotNil(t, files[1].Size)
	assert.EqualValues(t, 1536, *files[1].Size)
	require.NotNil(t, files[1].ModifiedTime)
	assert.Equal(t, 2024, files[1].ModifiedTime.Year())
	assert.Equal(t, []string{"root"}, files[1].Parents)
}

func TestSearchUsesNameAndTypeFilters(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"files":[]}`))
	})

	require.True(t, api.Search(context.Background(), "june", 20).OK())
	require.True(t, api.Search(context.Background(), "type:pdf", 20).OK())
	require.True(t, api.Shared(context.Background(), 20).OK())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"name contains 'june' and trashed=false",
		"mimeType contains 'pdf' and trashed=false",
		"sharedWithMe=true and trashed=false",
	}, queries)
}

func TestListFailureIsOperationError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"insufficient permissions"}}`))
	})

	res := api.Search(context.Background(), "june", 5)
	require.False(t, res.OK())
	assert.Nil(t, res.Payload())

	var opErr *OperationError
	require.True(t, errors.As(res.Reason(), &opErr))
	assert.Equal(t, "search", opErr.Op)
	assert.Contains(t, res.Reason().Error(), "insufficient permissions")
}

func TestCreateFolder(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)

		var body struct {
			Name     string   `json:"name"`
			MimeType string   `json:"mimeType"`
			Parents  []string `json:"parents"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Reports", body.Name)
		assert.Equal(t, FolderMimeType, body.MimeType)
		assert.Equal(t, []string{"root"}, body.Parents)

		_, _ = w.Write([]byte(`{"id":"new1","name":"Reports","mimeType":"application/vnd.google-apps.folder","parents":["root"]}`))
	})

	res := api.CreateFolder(context.Background(), "Reports", "")
	require.True(t, res.OK(), "reason: %v", res.Reason())
	assert.Equal(t, "new1", res.Payload().ID)
	assert.True(t, res.Payload().IsFolder())
}

func TestDelete(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/files/abc123", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	res := api.Delete(context.Background(), "abc123")
	assert.True(t, res.OK(), "reason: %v", res.Reason())
}

func TestUploadWithoutBodyFails(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	res := api.Upload(context.Background(), Upload{Name: "empty.txt"})
	require.False(t, res.OK())

	var opErr *OperationError
	assert.True(t, errors.As(res.Reason(), &opErr))
}

func TestCredentialsConfigured(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"none", Credentials{}, false},
		{"service account", Credentials{ServiceAccountJSON: []byte("{}")}, true},
		{"oauth without refresh token", Credentials{ClientID: "id", ClientSecret: "secret"}, false},
		{"oauth", Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "rt"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.Configured())
		})
	}
}

func TestClientOptionsWithoutCredentials(t *testing.T) {
	_, err := ClientOptions(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrNoCredentials)
}
