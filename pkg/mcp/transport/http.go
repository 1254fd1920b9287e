// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSessionExpired indicates the server no longer recognizes our session.
var ErrSessionExpired = errors.New("session expired")

// StreamableHTTP implements the streamable HTTP transport: every request is
// a POST to a single endpoint, and the server answers with either a JSON
// body or a short-lived SSE stream. Session affinity is carried in the
// Mcp-Session-Id header.
type StreamableHTTP struct {
	endpoint string
	client   *http.Client
	headers  map[string]string

	sessionMu sync.RWMutex
	sessionID string

	messages chan []byte
	errs     chan error

	mu      sync.Mutex
	closed  bool
	started bool

	streams   sync.WaitGroup
	streamCtx context.Context
	cancel    context.CancelFunc

	logger *zap.Logger
}

// StreamableHTTPConfig configures the transport.
type StreamableHTTPConfig struct {
	Endpoint string
	Headers  map[string]string
	Logger   *zap.Logger
}

// NewStreamableHTTP creates the transport. No connection is made until the
// first Send.
func NewStreamableHTTP(cfg StreamableHTTPConfig) (*StreamableHTTP, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	return &StreamableHTTP{
		endpoint:  cfg.Endpoint,
		client:    &http.Client{},
		headers:   cfg.Headers,
		messages:  make(chan []byte, 100),
		errs:      make(chan error, 1),
		streamCtx: streamCtx,
		cancel:    cancel,
		logger:    logger,
	}, nil
}

// Send POSTs one message and feeds any response payloads into the receive
// queue.
func (t *StreamableHTTP) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	first := !t.started
	t.started = true
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if id := t.SessionID(); id != "" {
		req.Header.Set("Mcp-Session-Id", id)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	if err := t.checkStatus(resp); err != nil {
		return err
	}

	if first {
		if id := resp.Header.Get("Mcp-Session-Id"); id != "" {
			t.setSessionID(id)
			t.logger.Debug("MCP session established", zap.String("sessionID", id))
		}
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "text/event-stream"):
		// Single-shot streams are common; buffer the whole body so the
		// server closing the connection does not race the parser.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}
		t.consumeStream(ctx, bytes.NewReader(data))
		return nil

	case strings.HasPrefix(contentType, "application/json"):
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		// Empty bodies acknowledge notifications.
		if len(data) == 0 {
			return nil
		}
		select {
		case t.messages <- data:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	default:
		return fmt.Errorf("unexpected Content-Type %q", contentType)
	}
}

// Receive returns the next queued server message.
func (t *StreamableHTTP) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.streamCtx.Done():
		return nil, io.EOF
	case err := <-t.errs:
		return nil, err
	case msg := <-t.messages:
		return msg, nil
	}
}

// Close cancels in-flight streams and terminates the server session.
func (t *StreamableHTTP) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.streams.Wait()

	if t.SessionID() != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		t.terminateSession(ctx)
	}
	return nil
}

// SessionID returns the current session identifier, if any.
func (t *StreamableHTTP) SessionID() string {
	t.sessionMu.RLock()
	defer t.sessionMu.RUnlock()
	return t.sessionID
}

func (t *StreamableHTTP) setSessionID(id string) {
	t.sessionMu.Lock()
	t.sessionID = id
	t.sessionMu.Unlock()
}

// consumeStream parses SSE events from the body and queues their payloads.
func (t *StreamableHTTP) consumeStream(ctx context.Context, body io.Reader) {
	t.streams.Add(1)
	go func() {
		defer t.streams.Done()

		scanner := bufio.NewReader(body)
		var dataLines []string
		flush := func() bool {
			if len(dataLines) == 0 {
				return true
			}
			payload := []byte(strings.Join(dataLines, "\n"))
			dataLines = nil
			select {
			case t.messages <- payload:
				return true
			case <-t.streamCtx.Done():
				return false
			case <-ctx.Done():
				return false
			}
		}

		for {
			line, err := scanner.ReadString('\n')
			if err != nil {
				flush()
				if err != io.EOF {
					t.logger.Warn("event stream read error", zap.Error(err))
				}
				return
			}
			line = strings.TrimRight(line, "\r\n")

			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
				// comment line
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			default:
				// id:/event: fields are not needed; streams are not resumed
			}
		}
	}()
}

// checkStatus maps HTTP status codes to transport errors.
func (t *StreamableHTTP) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		t.logger.Warn("MCP session expired, clearing session ID")
		t.setSessionID("")
		return ErrSessionExpired
	case http.StatusMethodNotAllowed:
		return fmt.Errorf("HTTP 405: operation not supported by server")
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
}

// terminateSession tells the server to discard our session. Best effort; a
// 405 means the server does not allow client-side termination.
func (t *StreamableHTTP) terminateSession(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return
	}
	req.Header.Set("Mcp-Session-Id", t.SessionID())

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("session termination failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}

var _ Transport = (*StreamableHTTP)(nil)
