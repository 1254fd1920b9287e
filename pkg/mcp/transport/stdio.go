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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// exitGrace is how long Close waits for the child to exit after stdin is
// closed before killing it.
const exitGrace = 5 * time.Second

// Stdio runs an MCP server as a child process and exchanges newline-framed
// JSON-RPC messages over its stdin/stdout. Stderr is drained in the
// background so the child never blocks on a full pipe.
type Stdio struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// reader is unbuffered-size-limit: server responses can be arbitrarily
	// large, so a bufio.Scanner would truncate them.
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// StdioConfig configures the child process.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
	Logger  *zap.Logger
}

// NewStdio starts the server process and wires up its pipes.
func NewStdio(cfg StdioConfig) (*Stdio, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// #nosec G204 -- the command comes from the operator's own configuration
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("starting %q: %w", cfg.Command, err)
	}

	t := &Stdio{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		reader: bufio.NewReader(stdout),
		logger: logger,
	}
	go t.drainStderr()

	logger.Info("MCP server process started",
		zap.String("command", cfg.Command),
		zap.Int("pid", cmd.Process.Pid))

	return t, nil
}

// drainStderr keeps the child's stderr pipe from filling up. Output is
// discarded; servers keep their own logs.
func (t *Stdio) drainStderr() {
	reader := bufio.NewReader(t.stderr)
	for {
		if _, err := reader.ReadBytes('\n'); err != nil {
			if err != io.EOF {
				t.logger.Debug("stderr read ended", zap.Error(err))
			}
			return
		}
	}
}

// Send writes one newline-terminated message to the child's stdin.
func (t *Stdio) Send(ctx context.Context, message []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.stdin.Write(message); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if _, err := t.stdin.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing frame delimiter: %w", err)
	}
	return nil
}

// Receive reads the next newline-terminated message from the child's stdout.
func (t *Stdio) Receive(ctx context.Context) ([]byte, error) {
	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			resultCh <- readResult{nil, ErrClosed}
			return
		}
		t.mu.Unlock()

		data, err := t.reader.ReadBytes('\n')
		if err != nil {
			resultCh <- readResult{nil, err}
			return
		}
		if n := len(data); n > 0 && data[n-1] == '\n' {
			data = data[:n-1]
		}
		if n := len(data); n > 0 && data[n-1] == '\r' {
			data = data[:n-1]
		}
		resultCh <- readResult{data, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.data, result.err
	}
}

// Close closes stdin to signal shutdown, waits briefly for the child to
// exit, and kills it if it does not.
func (t *Stdio) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Warn("MCP server exited with error", zap.Error(err))
		}
	case <-time.After(exitGrace):
		t.logger.Warn("MCP server did not exit, killing process",
			zap.Int("pid", t.cmd.Process.Pid))
		if err := t.cmd.Process.Kill(); err != nil {
			t.logger.Error("failed to kill MCP server process", zap.Error(err))
		}
		<-done
	}

	t.stdout.Close()
	t.stderr.Close()
	return nil
}

var _ Transport = (*Stdio)(nil)
