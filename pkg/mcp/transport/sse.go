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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

// SSE implements the legacy HTTP+SSE transport: requests go out as POSTs to
// the messages endpoint, responses arrive as server-sent events on the event
// stream.
type SSE struct {
	endpoint   string
	sseClient  *sse.Client
	httpClient *http.Client
	headers    map[string]string

	events chan []byte
	errs   chan error

	subCtx    context.Context
	subCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// SSEConfig configures the HTTP+SSE transport.
type SSEConfig struct {
	// Endpoint is the server base URL; the event stream is at /sse and
	// messages are POSTed to /messages.
	Endpoint string
	Headers  map[string]string
	Logger   *zap.Logger
}

// NewSSE creates the transport and starts the event subscription in the
// background, so a down server does not block construction.
func NewSSE(cfg SSEConfig) (*SSE, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := sse.NewClient(cfg.Endpoint + "/sse")
	for k, v := range cfg.Headers {
		client.Headers[k] = v
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	t := &SSE{
		endpoint:   cfg.Endpoint,
		sseClient:  client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    cfg.Headers,
		events:     make(chan []byte, 100),
		errs:       make(chan error, 1),
		subCtx:     subCtx,
		subCancel:  subCancel,
		logger:     logger,
	}

	client.OnDisconnect(func(*sse.Client) {
		t.logger.Warn("SSE stream disconnected", zap.String("endpoint", cfg.Endpoint))
		select {
		case t.errs <- fmt.Errorf("SSE stream disconnected"):
		default:
		}
	})

	go func() {
		err := client.SubscribeWithContext(subCtx, "message", func(msg *sse.Event) {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			select {
			case t.events <- msg.Data:
			default:
				t.logger.Warn("SSE event dropped, receive buffer full")
			}
		})
		if err != nil && subCtx.Err() == nil {
			t.logger.Warn("SSE subscription failed",
				zap.String("endpoint", cfg.Endpoint), zap.Error(err))
			select {
			case t.errs <- fmt.Errorf("SSE subscribe: %w", err):
			default:
			}
		}
	}()

	return t, nil
}

// Send POSTs one message to the server's messages endpoint.
func (t *SSE) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/messages", bytes.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Receive returns the next server-sent event payload.
func (t *SSE) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.subCtx.Done():
		return nil, io.EOF
	case err := <-t.errs:
		return nil, err
	case data := <-t.events:
		return data, nil
	}
}

// Close stops the event subscription.
func (t *SSE) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	t.subCancel()
	return nil
}

var _ Transport = (*SSE)(nil)
