// Package transport fetches release artifacts over HTTPS with streaming
// downloads, progress reporting and digest-checked atomic placement.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/dotbins/dotbins/internal/config"
	"github.com/dotbins/dotbins/internal/digest"
	"github.com/dotbins/dotbins/internal/events"
	"github.com/dotbins/dotbins/internal/models"
)

// ProgressFunc receives download progress. received is monotonically
// non-decreasing; total is -1 when the server does not declare a length.
type ProgressFunc func(received, total int64)

// Client wraps an http.Client configured for artifact downloads.
type Client struct {
	client    *http.Client
	userAgent string
	chunkSize int
	logger    *events.Logger
}

// NewClient creates a transport client with HTTP/2 enabled.
func NewClient(cfg *config.HTTPConfig, logger *events.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		chunkSize: cfg.ChunkSize,
		logger:    logger.WithField("component", "transport"),
	}
}

// Fetch streams url into dest in fixed-size chunks. The body is written
// to a temporary file in dest's directory and renamed into place only
// after it is complete and, when expectedDigest is non-empty, its
// digest matches. No partially written or mismatched file is ever
// observable at dest. There is no internal retry; the caller decides.
func (c *Client) Fetch(ctx context.Context, url, dest, expectedDigest string, progress ProgressFunc) (int64, error) {
	c.logger.WithFields(map[string]interface{}{
		"url":  url,
		"dest": dest,
	}).Debug("Fetching artifact")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &models.TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &models.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &models.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}

	// Temp file lives next to dest so the final rename stays on one
	// filesystem and is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		tmp.Close()
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := c.copyBody(ctx, tmp, resp, progress)
	if err != nil {
		return 0, err
	}

	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	if expectedDigest != "" {
		actual, err := digest.File(tmpPath)
		if err != nil {
			return 0, err
		}
		if !strings.EqualFold(actual, expectedDigest) {
			return 0, &models.IntegrityError{
				Path:     url,
				Expected: expectedDigest,
				Actual:   actual,
			}
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	c.logger.WithFields(map[string]interface{}{
		"url":   url,
		"bytes": written,
	}).Debug("Fetched artifact")

	return written, nil
}

// copyBody streams the response body in chunkSize reads.
func (c *Client) copyBody(ctx context.Context, w io.Writer, resp *http.Response, progress ProgressFunc) (int64, error) {
	total := resp.ContentLength
	if total < 0 {
		total = -1
	}

	var received int64
	buf := make([]byte, c.chunkSize)
	for {
		select {
		case <-ctx.Done():
			return received, &models.TransportError{URL: resp.Request.URL.String(), Err: ctx.Err()}
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return received, fmt.Errorf("write chunk: %w", err)
			}
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			return received, nil
		}
		if readErr != nil {
			return received, &models.TransportError{URL: resp.Request.URL.String(), Err: readErr}
		}
	}
}

// GetJSON fetches url and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &models.TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &models.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &models.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
