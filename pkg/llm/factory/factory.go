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

// Package factory constructs LLM adapters from configuration. The router
// field picks the integration path: "unified" goes through any-llm-go,
// "in-built" through the provider's own SDK.
package factory

import (
	"fmt"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/llm"
	"github.com/teradata-labs/warp/pkg/llm/anthropic"
	"github.com/teradata-labs/warp/pkg/llm/openai"
	"github.com/teradata-labs/warp/pkg/llm/unified"
	"go.uber.org/zap"
)

// New builds an adapter for the configured provider, model, and router.
// The router defaults per provider when unset; a provider/router pair the
// registry does not support is an error rather than a silent fallback, so
// a bad live-switch request cannot tear down a working session.
func New(cfg config.LLMConfig, logger *zap.Logger) (llm.Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm factory: provider is required")
	}
	if _, ok := config.Provider(cfg.Provider); !ok {
		return nil, fmt.Errorf("llm factory: unknown provider %q (supported: %v)",
			cfg.Provider, config.SupportedProviders())
	}

	router := cfg.Router.Normalize()
	if router == "" {
		router = config.DefaultRouter(cfg.Provider)
	}
	if !config.SupportsRouter(cfg.Provider, router) {
		return nil, fmt.Errorf("llm factory: provider %q does not support router %q",
			cfg.Provider, router)
	}

	logger.Debug("building LLM adapter",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("router", string(router)))

	switch router {
	case config.RouterUnified:
		return unified.New(unified.Config{
			Provider:        cfg.Provider,
			Model:           cfg.Model,
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Temperature:     cfg.Temperature,
			Logger:          logger,
		})

	case config.RouterInBuilt:
		switch cfg.Provider {
		case "anthropic":
			return anthropic.New(anthropic.Config{
				APIKey:          cfg.APIKey,
				Model:           cfg.Model,
				BaseURL:         cfg.BaseURL,
				MaxOutputTokens: cfg.MaxOutputTokens,
				Temperature:     cfg.Temperature,
				Logger:          logger,
			})
		case "openai", "openai-compatible":
			return openai.New(openai.Config{
				APIKey:          cfg.APIKey,
				Model:           cfg.Model,
				BaseURL:         cfg.BaseURL,
				MaxOutputTokens: cfg.MaxOutputTokens,
				Temperature:     cfg.Temperature,
				Logger:          logger,
				ProviderName:    cfg.Provider,
			})
		default:
			return nil, fmt.Errorf("llm factory: provider %q has no in-built adapter", cfg.Provider)
		}

	default:
		return nil, fmt.Errorf("llm factory: unknown router %q", router)
	}
}
