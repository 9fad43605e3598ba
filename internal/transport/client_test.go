package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/models"
	"github.com/dotbins/dotbins/internal/transport"
	"github.com/dotbins/dotbins/test/testutil"
)

func newClient(t *testing.T) *transport.Client {
	t.Helper()
	return transport.NewClient(&config.HTTPConfig{
		Timeout:   5 * time.Second,
		UserAgent: "dotbins-test",
		ChunkSize: 16, // Small chunks to exercise the streaming loop
	}, testutil.Logger())
}

func TestFetch(t *testing.T) {
	body := []byte("artifact contents spanning several chunks")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dotbins-test", r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "cache", "tool-1.0-linux-amd64.tar.gz")

	var calls int
	var lastReceived int64
	written, err := newClient(t).Fetch(context.Background(), server.URL, dest, testutil.SHA256(body),
		func(received, total int64) {
			calls++
			assert.GreaterOrEqual(t, received, lastReceived, "progress must not regress")
			assert.Equal(t, int64(len(body)), total)
			lastReceived = received
		})

	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)
	assert.Greater(t, calls, 1)
	assert.Equal(t, int64(len(body)), lastReceived)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchDigestMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not what was promised"))
	}))
	defer server.Close()

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "tool.tar.gz")

	_, err := newClient(t).Fetch(context.Background(), server.URL, dest,
		strings.Repeat("0", 64), nil)

	var integrity *models.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, strings.Repeat("0", 64), integrity.Expected)

	// The atomicity contract: nothing visible at dest, no temp leftovers.
	assert.NoFileExists(t, dest)
	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "tool.tar.gz")
	_, err := newClient(t).Fetch(context.Background(), server.URL, dest, "", nil)

	var terr *models.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)
	assert.NoFileExists(t, dest)
}

func TestFetchUnreachable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")
	_, err := newClient(t).Fetch(context.Background(),
		"http://127.0.0.1:1/unreachable", dest, "", nil)

	var terr *models.TransportError
	require.ErrorAs(t, err, &terr)
	assert.NoFileExists(t, dest)
}

func TestFetchCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "tool.tar.gz")

	done := make(chan error, 1)
	go func() {
		_, err := newClient(t).Fetch(ctx, server.URL, dest, "", nil)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.NoFileExists(t, dest, "cancelled download must leave no artifact")
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"ghsa_id":"GHSA-x","summary":"fzf issue"}]`))
	}))
	defer server.Close()

	var out []map[string]string
	err := newClient(t).GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "GHSA-x", out[0]["ghsa_id"])
}

func TestGetJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	var out interface{}
	err := newClient(t).GetJSON(context.Background(), server.URL, &out)

	var terr *models.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusForbidden, terr.StatusCode)
}
