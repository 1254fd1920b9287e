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

// Package anthropic implements the in-built router adapter for the
// Anthropic Messages API via the official SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
	"go.uber.org/zap"
)

// DefaultMaxOutputTokens caps completions when the config does not.
const DefaultMaxOutputTokens = 4096

// Adapter drives one Anthropic model. One provider invocation per
// Generate call; the session owns the surrounding tool loop.
type Adapter struct {
	client          sdk.Client
	model           string
	maxOutputTokens int64
	temperature     *float64
	logger          *zap.Logger
}

// Config holds the adapter settings.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int
	Temperature     *float64
	Logger          *zap.Logger
}

// New creates an Anthropic adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client:          sdk.NewClient(opts...),
		model:           cfg.Model,
		maxOutputTokens: int64(cfg.MaxOutputTokens),
		temperature:     cfg.Temperature,
		logger:          cfg.Logger,
	}, nil
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return "anthropic" }

// Model implements llm.Adapter.
func (a *Adapter) Model() string { return a.model }

// Generate implements llm.Adapter.
func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.StepResult, error) {
	nameMap := make(map[string]string)
	params := a.buildParams(req, nameMap)

	if req.Stream {
		return a.generateStreaming(ctx, params, req.OnToken, nameMap)
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}
	return a.convertMessage(message, nameMap), nil
}

func (a *Adapter) buildParams(req *llm.Request, nameMap map[string]string) sdk.MessageNewParams {
	system, messages := formatMessages(req.Messages)
	if req.SystemPrompt != "" {
		system = req.SystemPrompt
	}

	maxTokens := a.maxOutputTokens
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	} else if a.temperature != nil {
		params.Temperature = sdk.Float(*a.temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = formatTools(req.Tools, nameMap)
	}
	return params
}

// convertMessage partitions a response into text and tool_use blocks and
// canonicalizes the tool calls.
func (a *Adapter) convertMessage(message *sdk.Message, nameMap map[string]string) *llm.StepResult {
	result := &llm.StepResult{
		FinishReason: normalizeStopReason(string(message.StopReason)),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      llm.ReverseToolName(nameMap, block.Name),
				Arguments: decodeArguments(block.Input),
			})
		}
	}
	return result
}

// generateStreaming consumes the SSE stream, emitting text deltas through
// onToken and buffering input_json_delta fragments per content block index
// until the block closes.
func (a *Adapter) generateStreaming(ctx context.Context, params sdk.MessageNewParams, onToken func(string), nameMap map[string]string) (*llm.StepResult, error) {
	stream := a.client.Messages.NewStreaming(ctx, params)

	var text strings.Builder
	var toolCalls []types.ToolCall
	toolInputBuffers := make(map[int64]*strings.Builder)
	toolCallIndex := make(map[int64]int)
	result := &llm.StepResult{}

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			result.Usage.InputTokens = int(start.Message.Usage.InputTokens)

		case "content_block_start":
			blockStart := event.AsContentBlockStart()
			if blockStart.ContentBlock.Type == "tool_use" {
				toolUse := blockStart.ContentBlock.AsToolUse()
				toolCallIndex[blockStart.Index] = len(toolCalls)
				toolCalls = append(toolCalls, types.ToolCall{
					ID:        toolUse.ID,
					Name:      llm.ReverseToolName(nameMap, toolUse.Name),
					Arguments: map[string]interface{}{},
				})
				toolInputBuffers[blockStart.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			blockDelta := event.AsContentBlockDelta()
			switch blockDelta.Delta.Type {
			case "text_delta":
				if blockDelta.Delta.Text != "" {
					text.WriteString(blockDelta.Delta.Text)
					if onToken != nil {
						onToken(blockDelta.Delta.Text)
					}
				}
			case "input_json_delta":
				if buf, ok := toolInputBuffers[blockDelta.Index]; ok {
					buf.WriteString(blockDelta.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			blockStop := event.AsContentBlockStop()
			if buf, ok := toolInputBuffers[blockStop.Index]; ok && buf.Len() > 0 {
				if idx, ok := toolCallIndex[blockStop.Index]; ok {
					toolCalls[idx].Arguments = decodeArguments(json.RawMessage(buf.String()))
				}
			}
			delete(toolInputBuffers, blockStop.Index)
			delete(toolCallIndex, blockStop.Index)

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Delta.StopReason != "" {
				result.FinishReason = normalizeStopReason(string(delta.Delta.StopReason))
			}
			if delta.Usage.OutputTokens > 0 {
				result.Usage.OutputTokens = int(delta.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, a.wrapError(err)
	}

	result.Text = text.String()
	result.ToolCalls = toolCalls
	result.Usage.TotalTokens = result.Usage.InputTokens + result.Usage.OutputTokens
	if result.FinishReason == "" {
		result.FinishReason = llm.FinishStop
	}
	return result, nil
}

func (a *Adapter) wrapError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		kind := llm.ClassifyHTTPStatus(apiErr.StatusCode)
		return llm.NewError(kind, "anthropic",
			fmt.Sprintf("request failed with status %d", apiErr.StatusCode), err)
	}
	return llm.Classify("anthropic", err)
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return llm.FinishToolCalls
	case "max_tokens":
		return llm.FinishLength
	case "end_turn", "stop_sequence", "":
		return llm.FinishStop
	default:
		return reason
	}
}

func decodeArguments(raw json.RawMessage) map[string]interface{} {
	args := map[string]interface{}{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	return args
}

var _ llm.Adapter = (*Adapter)(nil)
