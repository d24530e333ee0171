package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetscribe/internal/config"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "uploads/abc.mov", ObjectKey("abc", "MOV"))
	assert.Equal(t, "uploads/abc.bin", ObjectKey("abc", ""))
	assert.Equal(t, "artifacts/abc/transcript.txt", TranscriptKey("abc"))
	assert.Equal(t, "artifacts/abc/summary.json", SummaryKey("abc"))

	for _, bad := range []string{"", "/abs", "a/../b", "a//b", `a\b`} {
		assert.Errorf(t, ValidateKey(bad), "key %q", bad)
	}
	assert.NoError(t, ValidateKey("uploads/abc.mp4"))
}

func TestNewSelectsBackend(t *testing.T) {
	fsBucket, err := New(config.Storage{Backend: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FS{}, fsBucket)

	_, err = New(config.Storage{Backend: "supabase"})
	assert.Error(t, err)

	_, err = New(config.Storage{Backend: "s3"})
	assert.Error(t, err)
}

func TestFSPutOpen(t *testing.T) {
	bucket, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, bucket.Put(ctx, "uploads/t1.mp4", strings.NewReader("payload"), "video/mp4"))
	rc, err := bucket.Open(ctx, "uploads/t1.mp4")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = bucket.Open(ctx, "uploads/missing.mp4")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, bucket.HealthCheck(ctx).Ready)
}

func TestFSPutHonoursCancellation(t *testing.T) {
	bucket, err := NewFS(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, bucket.Put(ctx, "uploads/t1.mp4", strings.NewReader("payload"), ""))
}

func TestSupabaseRoundTrip(t *testing.T) {
	objects := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer service-key" || r.Header.Get("apikey") != "service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/videos/"):
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			body, _ := io.ReadAll(r.Body)
			objects[strings.TrimPrefix(r.URL.Path, "/storage/v1/object/videos/")] = string(body)
			_, _ = io.WriteString(w, `{"Key":"videos/x"}`)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/storage/v1/object/videos/"):
			body, ok := objects[strings.TrimPrefix(r.URL.Path, "/storage/v1/object/videos/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, body)
		case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/bucket/videos":
			_, _ = io.WriteString(w, `{"id":"videos"}`)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer server.Close()

	bucket, err := NewSupabase(config.Storage{BaseURL: server.URL, Bucket: "videos", ServiceKey: "service-key"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, bucket.Put(ctx, "artifacts/t1/summary.json", strings.NewReader(`{"title":"x"}`), "application/json"))
	assert.Equal(t, `{"title":"x"}`, objects["artifacts/t1/summary.json"])

	rc, err := bucket.Open(ctx, "artifacts/t1/summary.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, `{"title":"x"}`, string(data))

	_, err = bucket.Open(ctx, "artifacts/t1/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, bucket.HealthCheck(ctx).Ready)
}
