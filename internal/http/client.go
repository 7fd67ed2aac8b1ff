// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package http fetches raw JSON snapshots from the BareTag backend.
package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	// DefaultTimeout bounds a single fetch including reading the body.
	DefaultTimeout = time.Second * 10

	// MaxBodySize is the largest snapshot body the client accepts.
	MaxBodySize = 4 << 20
)

var (
	// version is set at build time
	version = "dev"
	// UserAgent identifies the tracker towards the backend.
	UserAgent = fmt.Sprintf("baretag-tracker/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)

	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrBodyTooLarge     = errors.New("response body exceeds size limit")
	ErrInvalidJSON      = errors.New("response body is not valid JSON")
)

// Client fetches JSON documents over HTTP. Every fetch is bounded by timeout.
type Client struct {
	*http.Client
	timeout time.Duration
	logger  *logger.Logger
}

// New returns a Client that requires TLS 1.2 or newer for https endpoints.
func New(logger *logger.Logger) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Client{
		Client:  &http.Client{Transport: transport},
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Fetch performs a GET request against endpoint and returns the response body once it is known
// to be a JSON document. Responses outside the 2xx range fail with ErrUnexpectedStatus.
func (c *Client) Fetch(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %q: %w", endpoint, err)
	}
	for k, v := range header {
		request.Header[k] = v
	}
	request.Header.Set("User-Agent", UserAgent)
	request.Header.Set("Accept", "application/json")

	response, err := c.Do(request)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			c.logger.Error("failed to close HTTP response body", logger.Err(err))
		}
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}

	c.logger.Debug("fetched snapshot", slog.String("endpoint", endpoint),
		slog.Int("status", response.StatusCode), slog.Int("bytes", len(body)))
	return body, nil
}
