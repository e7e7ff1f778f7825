package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthorizer struct {
	token      atomic.Value
	refreshes  atomic.Int32
	refreshErr error
}

func newFakeAuthorizer(token string) *fakeAuthorizer {
	fa := &fakeAuthorizer{}
	fa.token.Store(token)
	return fa
}

func (f *fakeAuthorizer) AccessToken(ctx context.Context) (string, bool) {
	tok := f.token.Load().(string)
	return tok, tok != ""
}

func (f *fakeAuthorizer) Refresh(ctx context.Context) error {
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token.Store("fresh-token")
	return nil
}

func TestGetUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"name":"Sign"},"message":"ok","code":200}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	c := New(srv.URL)
	require.NoError(t, c.Get(context.Background(), "/api/v1/projects/p1", &out))
	assert.Equal(t, "Sign", out.Name)
}

func TestNullDataLeavesOutUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"message":"deleted","code":200}`))
	}))
	defer srv.Close()

	out := map[string]string{"keep": "me"}
	c := New(srv.URL)
	require.NoError(t, c.Get(context.Background(), "/x", &out))
	assert.Equal(t, "me", out["keep"])
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindValidation},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"boom","detail":"request_id=r1"}`))
			}))
			defer srv.Close()

			// Auth-exempt path so 401 is not retried here.
			err := New(srv.URL).Get(context.Background(), "/api/v1/auth/login", nil)
			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.kind, gwErr.Kind)
			assert.Equal(t, tt.status, gwErr.Code)
			assert.Equal(t, "boom", gwErr.Message)
			assert.Equal(t, "request_id=r1", gwErr.Detail)
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	c := New("http://127.0.0.1:1")
	err := c.Get(context.Background(), "/x", nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindNetwork, gwErr.Kind)
}

func TestRefreshRetryAfter401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"ok":true},"message":"ok","code":200}`))
	}))
	defer srv.Close()

	auth := newFakeAuthorizer("stale-token")
	c := New(srv.URL)
	c.SetAuthorizer(auth)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Get(context.Background(), "/api/v1/projects", &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), calls.Load(), "original call plus one retry")
	assert.Equal(t, int32(1), auth.refreshes.Load())
}

func TestFailedRefreshSurfacesOriginal401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	auth := newFakeAuthorizer("stale-token")
	auth.refreshErr = errors.New("refresh rejected")
	c := New(srv.URL)
	c.SetAuthorizer(auth)

	err := c.Get(context.Background(), "/api/v1/projects", nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindAuth, gwErr.Kind)
	assert.Equal(t, "invalid token", gwErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "no retry after failed refresh")
	assert.Equal(t, int32(1), auth.refreshes.Load())
}

func TestAuthPathsAreNeverRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid username or password"}`))
	}))
	defer srv.Close()

	auth := newFakeAuthorizer("")
	c := New(srv.URL)
	c.SetAuthorizer(auth)

	err := c.Post(context.Background(), "/api/v1/auth/login", map[string]string{"username": "x", "password": "y"}, nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindAuth, gwErr.Kind)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(0), auth.refreshes.Load())
}

func TestIdempotencyKeySharedAcrossRetry(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid token"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":null,"message":"created","code":201}`))
	}))
	defer srv.Close()

	auth := newFakeAuthorizer("stale-token")
	c := New(srv.URL)
	c.SetAuthorizer(auth)

	require.NoError(t, c.Post(context.Background(), "/api/v1/projects", map[string]string{"name": "x"}, nil))
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1], "retry must reuse the idempotency key")
}

func TestRequestsWithoutAuthorizerGoOutBare(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
		_, _ = w.Write([]byte(`{"data":null,"message":"ok","code":200}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Get(context.Background(), "/healthz", nil))
	assert.False(t, sawAuth)
}

func TestUploadSendsMultipartAndUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"missing file"}`))
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "proof.pdf", header.Filename)
		assert.Equal(t, "pdf bytes", string(content))
		assert.Equal(t, "Bearer upload-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"f1","filename":"proof.pdf","size":9},"message":"file uploaded","code":201}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetAuthorizer(newFakeAuthorizer("upload-token"))

	var out struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	err := c.Upload(context.Background(), "/api/v1/projects/p1/files", "file", "proof.pdf",
		strings.NewReader("pdf bytes"), &out)
	require.NoError(t, err)
	assert.Equal(t, "f1", out.ID)
	assert.Equal(t, int64(9), out.Size)
}

func TestUploadDoesNotRetryAfter401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer srv.Close()

	auth := newFakeAuthorizer("stale-token")
	c := New(srv.URL)
	c.SetAuthorizer(auth)

	err := c.Upload(context.Background(), "/api/v1/projects/p1/files", "file", "a.pdf",
		strings.NewReader("x"), nil)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindAuth, gwErr.Kind)
	assert.Equal(t, int32(1), calls.Load(), "uploads surface the 401 without retrying")
	assert.Equal(t, int32(0), auth.refreshes.Load())
}

func TestDownloadStreamsRawBody(t *testing.T) {
	payload := []byte("raw file bytes, not an envelope")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer download-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetAuthorizer(newFakeAuthorizer("download-token"))

	var buf bytes.Buffer
	require.NoError(t, c.Download(context.Background(), "/api/v1/projects/p1/files/f1", &buf))
	assert.Equal(t, payload, buf.Bytes())
}

func TestDownloadSurfacesEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	var buf bytes.Buffer
	err := c.Download(context.Background(), "/api/v1/projects/p1/files/missing", &buf)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindNotFound, gwErr.Kind)
	assert.Equal(t, "not found", gwErr.Message)
	assert.Zero(t, buf.Len())
}
