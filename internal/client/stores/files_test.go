package stores

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftdesk.org/internal/client/gateway"
	"craftdesk.org/internal/pm"
)

func TestFileListCachesPerProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects/p1/files", r.URL.Path)
		_, _ = w.Write(envelope([]pm.ProjectFile{
			{ID: "f1", ProjectID: "p1", Filename: "quote.pdf"},
			{ID: "f2", ProjectID: "p1", Filename: "sketch.png"},
		}))
	}))
	defer srv.Close()

	s := NewFileStore(gateway.New(srv.URL))
	files, err := s.List(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, files, 2)

	projectID, cached := s.Cached()
	assert.Equal(t, "p1", projectID)
	require.Len(t, cached, 2)
	assert.Equal(t, "f1", cached[0].ID)
}

func TestUploadPrependsConfirmedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write(envelope([]pm.ProjectFile{{ID: "f1", ProjectID: "p1", Filename: "old.pdf"}}))
		case http.MethodPost:
			file, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"missing file"}`))
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			assert.Equal(t, "new.pdf", header.Filename)
			assert.Equal(t, "fresh bytes", string(content))
			w.WriteHeader(http.StatusCreated)
			// Server-canonical record, not what the client guessed.
			_, _ = w.Write(envelope(pm.ProjectFile{ID: "f2", ProjectID: "p1", Filename: "new.pdf", Size: 11}))
		}
	}))
	defer srv.Close()

	s := NewFileStore(gateway.New(srv.URL))
	ctx := context.Background()
	_, err := s.List(ctx, "p1")
	require.NoError(t, err)

	created, err := s.Upload(ctx, "p1", "new.pdf", strings.NewReader("fresh bytes"))
	require.NoError(t, err)
	assert.Equal(t, "f2", created.ID)
	assert.Equal(t, int64(11), created.Size)

	_, cached := s.Cached()
	require.Len(t, cached, 2)
	assert.Equal(t, "f2", cached[0].ID, "confirmed upload is prepended")
}

func TestFailedUploadLeavesCacheUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write(envelope([]pm.ProjectFile{{ID: "f1", ProjectID: "p1", Filename: "old.pdf"}}))
			return
		}
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = w.Write([]byte(`{"message":"file too large"}`))
	}))
	defer srv.Close()

	s := NewFileStore(gateway.New(srv.URL))
	ctx := context.Background()
	_, err := s.List(ctx, "p1")
	require.NoError(t, err)

	_, err = s.Upload(ctx, "p1", "huge.bin", strings.NewReader("x"))
	require.Error(t, err)

	_, cached := s.Cached()
	require.Len(t, cached, 1)
	assert.Equal(t, "f1", cached[0].ID)
}

func TestDeleteFileRemovesFromCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write(envelope([]pm.ProjectFile{
				{ID: "f1", ProjectID: "p1"},
				{ID: "f2", ProjectID: "p1"},
			}))
			return
		}
		_, _ = w.Write(envelope(nil))
	}))
	defer srv.Close()

	s := NewFileStore(gateway.New(srv.URL))
	ctx := context.Background()
	_, err := s.List(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "p1", "f1"))
	_, cached := s.Cached()
	require.Len(t, cached, 1)
	assert.Equal(t, "f2", cached[0].ID)
}

func TestDownloadWritesBytes(t *testing.T) {
	payload := []byte("binary artwork")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects/p1/files/f1", r.URL.Path)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	s := NewFileStore(gateway.New(srv.URL))
	var buf bytes.Buffer
	require.NoError(t, s.Download(context.Background(), "p1", "f1", &buf))
	assert.Equal(t, payload, buf.Bytes())
}
