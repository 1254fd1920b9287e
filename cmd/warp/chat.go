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
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/internal/log"
	"github.com/teradata-labs/warp/internal/version"
	"github.com/teradata-labs/warp/pkg/agent"
	"github.com/teradata-labs/warp/pkg/events"
)

// runChat starts the agent and hands stdin lines to it until EOF or SIGINT.
func runChat(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log.SetLogger(logger)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := agent.New(cfg, agent.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(context.Background()); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if sessionID != "" {
		if err := a.LoadSession(ctx, sessionID); err != nil {
			return err
		}
	}

	if failed, err := a.McpFailedConnections(); err == nil {
		for name, reason := range failed {
			fmt.Fprintf(os.Stderr, "warning: MCP server %s unavailable: %s\n", name, reason)
		}
	}

	if stream {
		go printChunks(ctx, a)
	}

	fmt.Printf("warp %s (session %s). Ctrl-D to exit.\n", version.Get(), a.CurrentSessionID())
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		out, err := a.Run(ctx, agent.Input{Text: line, Stream: stream})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		if stream {
			// Chunks already printed; finish the line.
			fmt.Println()
		} else if out != "" {
			fmt.Println(out)
		}
	}
	fmt.Println()
	return scanner.Err()
}

// printChunks mirrors streamed deltas to stdout as they arrive.
func printChunks(ctx context.Context, a *agent.Agent) {
	sub := a.Events().Subscribe(ctx, 256, events.TopicChunk)
	for ev := range sub {
		if chunk, ok := ev.Payload.(events.Chunk); ok {
			fmt.Print(chunk.Delta)
		}
	}
}
