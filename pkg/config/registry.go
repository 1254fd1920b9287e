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

package config

import (
	"sort"
	"strings"
)

// ModelInfo describes one known model of a provider.
type ModelInfo struct {
	Name           string
	MaxInputTokens int
	IsDefault      bool
	SupportsImages bool
	SupportsFiles  bool
	MaxFileBytes   int64
}

// ProviderInfo describes one supported provider.
type ProviderInfo struct {
	// Routers lists supported routers; the first entry is the default.
	Routers []Router

	// BaseURLAllowed permits a custom endpoint.
	BaseURLAllowed bool

	// RequiresAPIKey makes a missing apiKey a validation error.
	RequiresAPIKey bool

	// AllowAnyModel accepts model names outside the table (local runtimes
	// and OpenAI-compatible gateways).
	AllowAnyModel bool

	// DefaultMaxInputTokens applies when the model is not in the table.
	DefaultMaxInputTokens int

	// ModelPrefixes claim bare model names for provider inference.
	ModelPrefixes []string

	// Models is the known model table.
	Models []ModelInfo
}

const defaultMaxFileBytes = 20 << 20 // 20 MiB

// registry is the static provider/model table. It drives configuration
// validation, provider inference from bare model names, and the compression
// threshold.
var registry = map[string]ProviderInfo{
	"openai": {
		Routers:               []Router{RouterUnified, RouterInBuilt},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 128_000,
		ModelPrefixes:         []string{"gpt-", "o1", "o3", "chatgpt-"},
		Models: []ModelInfo{
			{Name: "gpt-4o", MaxInputTokens: 128_000, SupportsImages: true, SupportsFiles: true, MaxFileBytes: defaultMaxFileBytes},
			{Name: "gpt-4o-mini", MaxInputTokens: 128_000, IsDefault: true, SupportsImages: true, SupportsFiles: true, MaxFileBytes: defaultMaxFileBytes},
			{Name: "gpt-4-turbo", MaxInputTokens: 128_000, SupportsImages: true},
			{Name: "gpt-4", MaxInputTokens: 8_192},
			{Name: "gpt-3.5-turbo", MaxInputTokens: 16_385},
			{Name: "o1", MaxInputTokens: 200_000, SupportsImages: true},
			{Name: "o3-mini", MaxInputTokens: 200_000},
		},
	},
	"anthropic": {
		Routers:               []Router{RouterInBuilt, RouterUnified},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 200_000,
		ModelPrefixes:         []string{"claude"},
		Models: []ModelInfo{
			{Name: "claude-4-opus", MaxInputTokens: 200_000, SupportsImages: true, SupportsFiles: true, MaxFileBytes: defaultMaxFileBytes},
			{Name: "claude-4-sonnet", MaxInputTokens: 200_000, IsDefault: true, SupportsImages: true, SupportsFiles: true, MaxFileBytes: defaultMaxFileBytes},
			{Name: "claude-3-5-sonnet", MaxInputTokens: 200_000, SupportsImages: true},
			{Name: "claude-3-5-haiku", MaxInputTokens: 200_000, SupportsImages: true},
			{Name: "claude-3-opus", MaxInputTokens: 200_000, SupportsImages: true},
		},
	},
	"openai-compatible": {
		Routers:               []Router{RouterInBuilt},
		BaseURLAllowed:        true,
		AllowAnyModel:         true,
		DefaultMaxInputTokens: 32_768,
	},
	"gemini": {
		Routers:               []Router{RouterUnified},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 1_048_576,
		ModelPrefixes:         []string{"gemini"},
		Models: []ModelInfo{
			{Name: "gemini-2.0-flash", MaxInputTokens: 1_048_576, IsDefault: true, SupportsImages: true},
			{Name: "gemini-1.5-pro", MaxInputTokens: 2_097_152, SupportsImages: true},
			{Name: "gemini-1.5-flash", MaxInputTokens: 1_048_576, SupportsImages: true},
		},
	},
	"groq": {
		Routers:               []Router{RouterUnified},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 128_000,
		Models: []ModelInfo{
			{Name: "llama-3.3-70b-versatile", MaxInputTokens: 128_000, IsDefault: true},
			{Name: "mixtral-8x7b-32768", MaxInputTokens: 32_768},
		},
	},
	"mistral": {
		Routers:               []Router{RouterUnified},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 128_000,
		ModelPrefixes:         []string{"mistral", "magistral"},
		Models: []ModelInfo{
			{Name: "mistral-large-latest", MaxInputTokens: 128_000, IsDefault: true},
			{Name: "mistral-small-latest", MaxInputTokens: 32_768},
		},
	},
	"deepseek": {
		Routers:               []Router{RouterUnified},
		RequiresAPIKey:        true,
		DefaultMaxInputTokens: 64_000,
		ModelPrefixes:         []string{"deepseek"},
		Models: []ModelInfo{
			{Name: "deepseek-chat", MaxInputTokens: 64_000, IsDefault: true},
			{Name: "deepseek-reasoner", MaxInputTokens: 64_000},
		},
	},
	"ollama": {
		Routers:               []Router{RouterUnified},
		AllowAnyModel:         true,
		DefaultMaxInputTokens: 8_192,
	},
}

// Provider looks up a provider entry.
func Provider(name string) (ProviderInfo, bool) {
	info, ok := registry[name]
	return info, ok
}

// SupportedProviders lists provider names, sorted.
func SupportedProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRouter returns the provider's default router, or RouterUnified for
// unknown providers.
func DefaultRouter(provider string) Router {
	if info, ok := registry[provider]; ok && len(info.Routers) > 0 {
		return info.Routers[0]
	}
	return RouterUnified
}

// SupportsRouter reports whether a provider supports the given router.
func SupportsRouter(provider string, router Router) bool {
	info, ok := registry[provider]
	if !ok {
		return false
	}
	for _, r := range info.Routers {
		if r == router {
			return true
		}
	}
	return false
}

// DefaultModel returns the provider's default model name, if the table marks
// one.
func DefaultModel(provider string) (string, bool) {
	info, ok := registry[provider]
	if !ok {
		return "", false
	}
	for _, m := range info.Models {
		if m.IsDefault {
			return m.Name, true
		}
	}
	return "", false
}

// InferProvider resolves a bare model name to its provider using the longest
// matching model-table entry or provider prefix. Providers that accept any
// model never win inference.
func InferProvider(model string) (string, bool) {
	lower := strings.ToLower(model)
	best := ""
	bestLen := 0
	for name, info := range registry {
		for _, m := range info.Models {
			if strings.HasPrefix(lower, strings.ToLower(m.Name)) && len(m.Name) > bestLen {
				best, bestLen = name, len(m.Name)
			}
		}
		for _, prefix := range info.ModelPrefixes {
			if strings.HasPrefix(lower, prefix) && len(prefix) > bestLen {
				best, bestLen = name, len(prefix)
			}
		}
	}
	return best, best != ""
}

// Model finds a provider's model-table entry by longest prefix match.
func Model(provider, model string) (ModelInfo, bool) {
	info, ok := registry[provider]
	if !ok {
		return ModelInfo{}, false
	}
	lower := strings.ToLower(model)
	var best ModelInfo
	bestLen := 0
	for _, m := range info.Models {
		if strings.HasPrefix(lower, strings.ToLower(m.Name)) && len(m.Name) > bestLen {
			best, bestLen = m, len(m.Name)
		}
	}
	return best, bestLen > 0
}

// ModelCompatible reports whether a model name is acceptable for a provider.
func ModelCompatible(provider, model string) bool {
	info, ok := registry[provider]
	if !ok {
		return false
	}
	if info.AllowAnyModel {
		return true
	}
	if _, found := Model(provider, model); found {
		return true
	}
	lower := strings.ToLower(model)
	for _, prefix := range info.ModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ResolveMaxInputTokens computes the effective input-token budget: explicit
// config wins, then the model table, then the provider default.
func ResolveMaxInputTokens(cfg LLMConfig) int {
	if cfg.MaxInputTokens > 0 {
		return cfg.MaxInputTokens
	}
	if m, ok := Model(cfg.Provider, cfg.Model); ok {
		return m.MaxInputTokens
	}
	if info, ok := registry[cfg.Provider]; ok {
		return info.DefaultMaxInputTokens
	}
	return 32_768
}

// ModalitySupport describes what input kinds a configured model accepts.
type ModalitySupport struct {
	Images       bool
	Files        bool
	MaxFileBytes int64
}

// ResolveModalities returns the modality constraints for a configured model.
// Unknown models of any-model providers accept text only.
func ResolveModalities(cfg LLMConfig) ModalitySupport {
	if m, ok := Model(cfg.Provider, cfg.Model); ok {
		limit := m.MaxFileBytes
		if limit == 0 {
			limit = defaultMaxFileBytes
		}
		return ModalitySupport{Images: m.SupportsImages, Files: m.SupportsFiles, MaxFileBytes: limit}
	}
	return ModalitySupport{MaxFileBytes: defaultMaxFileBytes}
}
