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

// Package unified implements the unified router adapter on top of
// github.com/mozilla-ai/any-llm-go, which speaks to OpenAI, Anthropic,
// Gemini, Ollama, DeepSeek, Mistral, and Groq through one interface.
package unified

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/types"
	"go.uber.org/zap"
)

// Adapter drives one model through an any-llm-go backend.
type Adapter struct {
	backend     anyllmlib.Provider
	provider    string
	model       string
	maxOutput   int
	temperature *float64
	logger      *zap.Logger
}

// Config holds the adapter settings.
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
	Temperature     *float64
	Logger          *zap.Logger
}

// New creates a unified adapter for the given provider name. Supported
// names: openai, anthropic, gemini, ollama, deepseek, mistral, groq.
// Without an API key the backend falls back to the provider's usual
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(cfg Config) (*Adapter, error) {
	if cfg.Provider == "" {
		return nil, errors.New("unified: provider is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("unified: model is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	backend, err := createBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("unified: create %q backend: %w", cfg.Provider, err)
	}

	return &Adapter{
		backend:     backend,
		provider:    strings.ToLower(cfg.Provider),
		model:       cfg.Model,
		maxOutput:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// Provider implements llm.Adapter.
func (a *Adapter) Provider() string { return a.provider }

// Model implements llm.Adapter.
func (a *Adapter) Model() string { return a.model }

// Generate implements llm.Adapter.
func (a *Adapter) Generate(ctx context.Context, req *llm.Request) (*llm.StepResult, error) {
	nameMap := make(map[string]string)
	params := a.buildParams(req, nameMap)

	if req.Stream {
		return a.generateStreaming(ctx, params, req.OnToken, nameMap)
	}

	resp, err := a.backend.Completion(ctx, params)
	if err != nil {
		return nil, llm.Classify(a.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewError(llm.KindModelRejection, a.provider, "response carried no choices", nil)
	}

	choice := resp.Choices[0]
	result := &llm.StepResult{
		Text:         choice.Message.ContentString(),
		FinishReason: normalizeFinishReason(string(choice.FinishReason)),
	}
	if resp.Usage != nil {
		result.Usage = types.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      llm.ReverseToolName(nameMap, tc.Function.Name),
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	if len(result.ToolCalls) > 0 && result.FinishReason != llm.FinishToolCalls {
		result.FinishReason = llm.FinishToolCalls
	}
	return result, nil
}

// generateStreaming drains the backend chunk channel, forwarding content
// deltas through onToken and accumulating tool-call fragments by their
// position within each delta.
func (a *Adapter) generateStreaming(ctx context.Context, params anyllmlib.CompletionParams, onToken func(string), nameMap map[string]string) (*llm.StepResult, error) {
	chunks, errs := a.backend.CompletionStream(ctx, params)

	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	accum := map[int]*partialCall{}
	maxIndex := -1

	var text strings.Builder
	result := &llm.StepResult{}

	for chunk := range chunks {
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onToken != nil {
				onToken(delta.Content)
			}
		}
		for i, tc := range delta.ToolCalls {
			pc, ok := accum[i]
			if !ok {
				pc = &partialCall{}
				accum[i] = pc
			}
			if i > maxIndex {
				maxIndex = i
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
			result.FinishReason = normalizeFinishReason(string(choice.FinishReason))
		}
	}

	if err := <-errs; err != nil {
		return nil, llm.Classify(a.provider, err)
	}

	for i := 0; i <= maxIndex; i++ {
		pc, ok := accum[i]
		if !ok {
			continue
		}
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			ID:        pc.id,
			Name:      llm.ReverseToolName(nameMap, pc.name),
			Arguments: decodeArguments(pc.args.String()),
		})
	}

	result.Text = text.String()
	if len(result.ToolCalls) > 0 {
		result.FinishReason = llm.FinishToolCalls
	} else if result.FinishReason == "" {
		result.FinishReason = llm.FinishStop
	}
	return result, nil
}

func (a *Adapter) buildParams(req *llm.Request, nameMap map[string]string) anyllmlib.CompletionParams {
	messages := formatMessages(req.Messages)
	if req.SystemPrompt != "" && !hasSystemMessage(messages) {
		messages = append([]anyllmlib.Message{{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		}}, messages...)
	}

	params := anyllmlib.CompletionParams{
		Model:    a.model,
		Messages: messages,
	}
	if req.Temperature != nil {
		t := *req.Temperature
		params.Temperature = &t
	} else if a.temperature != nil {
		t := *a.temperature
		params.Temperature = &t
	}
	if req.MaxOutputTokens > 0 {
		mt := req.MaxOutputTokens
		params.MaxTokens = &mt
	} else if a.maxOutput > 0 {
		mt := a.maxOutput
		params.MaxTokens = &mt
	}
	for _, tool := range req.Tools {
		sanitized := llm.SanitizeToolName(tool.Name)
		nameMap[sanitized] = tool.Name
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        sanitized,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return params
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "tool_calls", "function_call":
		return llm.FinishToolCalls
	case "length", "max_tokens":
		return llm.FinishLength
	case "stop", "end_turn", "":
		return llm.FinishStop
	default:
		return reason
	}
}

// decodeArguments parses the wire argument JSON, tolerating empty and
// malformed payloads.
func decodeArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return args
}

var _ llm.Adapter = (*Adapter)(nil)
