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

// Package openai implements the in-built router adapter for the OpenAI
// chat-completions API. With a custom base URL it also serves the
// openai-compatible provider (gateways and local runtimes speaking the
// same protocol).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openailib "github.com/sashabaranov/go-openai"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
	"go.uber.org/zap"
)

// Adapter drives one OpenAI-protocol model.
type Adapter struct {
	client      *openailib.Client
	provider    string
	model       string
	maxOutput   int
	temperature *float64
	logger      *zap.Logger
}

// Config holds the adapter settings.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int
	Temperature     *float64
	Logger          *zap.Logger

	// ProviderName overrides the reported provider, e.g.
	// "openai-compatible" when a base URL points at a gateway.
	ProviderName string
}

// New creates an OpenAI adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	clientConfig := openailib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Adapter{
		client:      openailib.NewClientWithConfig(clientConfig),
		provider:    cfg.ProviderName,
		model:       cfg.Model,
		maxOutput:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}, nil
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return a.provider }

// Model implements llm.Adapter.
func (a *Adapter) Model() string { return a.model }

// Generate implements llm.Adapter.
func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.StepResult, error) {
	nameMap := make(map[string]string)
	ccr := a.buildRequest(req, nameMap)

	if req.Stream {
		return a.generateStreaming(ctx, ccr, req.OnToken, nameMap)
	}

	resp, err := a.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, a.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewError(llm.KindModelRejection, a.provider, "response carried no choices", nil)
	}

	choice := resp.Choices[0]
	result := &llm.StepResult{
		Text:         choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage: types.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, canonicalToolCall(tc, nameMap))
	}
	return result, nil
}

func (a *Adapter) buildRequest(req *llm.Request, nameMap map[string]string) openailib.ChatCompletionRequest {
	messages := formatMessages(req.Messages)
	if req.SystemPrompt != "" && !hasSystemMessage(messages) {
		messages = append([]openailib.ChatCompletionMessage{{
			Role:    openailib.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		}}, messages...)
	}

	ccr := openailib.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	}
	if req.Temperature != nil {
		ccr.Temperature = float32(*req.Temperature)
	} else if a.temperature != nil {
		ccr.Temperature = float32(*a.temperature)
	}
	if req.MaxOutputTokens > 0 {
		ccr.MaxTokens = req.MaxOutputTokens
	} else if a.maxOutput > 0 {
		ccr.MaxTokens = a.maxOutput
	}
	if len(req.Tools) > 0 {
		ccr.Tools = formatTools(req.Tools, nameMap)
		ccr.ToolChoice = "auto"
	}
	return ccr
}

// generateStreaming consumes the completion stream, emitting content
// deltas through onToken and accumulating tool-call argument fragments by
// index until the stream ends.
func (a *Adapter) generateStreaming(ctx context.Context, ccr openailib.ChatCompletionRequest, onToken func(string), nameMap map[string]string) (*llm.StepResult, error) {
	ccr.Stream = true
	ccr.StreamOptions = &openailib.StreamOptions{IncludeUsage: true}

	stream, err := a.client.CreateChatCompletionStream(ctx, ccr)
	if err != nil {
		return nil, a.wrapError(err)
	}
	defer func() { _ = stream.Close() }()

	var text strings.Builder
	result := &llm.StepResult{}
	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	accum := make(map[int]*partialCall)
	maxIndex := -1

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, a.wrapError(err)
		}

		if chunk.Usage != nil {
			result.Usage = types.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			if onToken != nil {
				onToken(choice.Delta.Content)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := accum[idx]
			if !ok {
				pc = &partialCall{}
				accum[idx] = pc
			}
			if idx > maxIndex {
				maxIndex = idx
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			result.FinishReason = normalizeFinishReason(choice.FinishReason)
		}
	}

	for idx := 0; idx <= maxIndex; idx++ {
		pc, ok := accum[idx]
		if !ok {
			continue
		}
		result.ToolCalls = append(result.ToolCalls, canonicalToolCall(openailib.ToolCall{
			ID:       pc.id,
			Function: openailib.FunctionCall{Name: pc.name, Arguments: pc.args.String()},
		}, nameMap))
	}

	result.Text = text.String()
	if result.FinishReason == "" {
		result.FinishReason = llm.FinishStop
	}
	return result, nil
}

func (a *Adapter) wrapError(err error) error {
	var apiErr *openailib.APIError
	if errors.As(err, &apiErr) {
		kind := llm.ClassifyHTTPStatus(apiErr.HTTPStatusCode)
		return llm.NewError(kind, a.provider,
			fmt.Sprintf("request failed with status %d", apiErr.HTTPStatusCode), err)
	}
	return llm.Classify(a.provider, err)
}

// canonicalToolCall converts a wire tool call, decoding the argument JSON
// and restoring the original tool name.
func canonicalToolCall(tc openailib.ToolCall, nameMap map[string]string) types.ToolCall {
	args := map[string]interface{}{}
	if tc.Function.Arguments != "" {
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
	}
	return types.ToolCall{
		ID:        tc.ID,
		Name:      llm.ReverseToolName(nameMap, tc.Function.Name),
		Arguments: args,
	}
}

func hasSystemMessage(messages []openailib.ChatCompletionMessage) bool {
	for _, m := range messages {
		if m.Role == openailib.ChatMessageRoleSystem {
			return true
		}
	}
	return false
}

func normalizeFinishReason(reason openailib.FinishReason) string {
	switch reason {
	case openailib.FinishReasonToolCalls, openailib.FinishReasonFunctionCall:
		return llm.FinishToolCalls
	case openailib.FinishReasonLength:
		return llm.FinishLength
	case openailib.FinishReasonStop, "":
		return llm.FinishStop
	default:
		return string(reason)
	}
}

var _ llm.Adapter = (*Adapter)(nil)
