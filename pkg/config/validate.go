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
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Code     string   `yaml:"code"`
	Message  string   `yaml:"message"`
	Severity Severity `yaml:"severity"`
	Context  string   `yaml:"context,omitempty"`
}

func (i Issue) String() string {
	if i.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", i.Code, i.Message, i.Context)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// ValidationError aggregates the error-severity issues of one validation
// pass, in the order they were found.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Severity == SeverityError {
			msgs = append(msgs, issue.String())
		}
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// splitIssues partitions issues into warnings and, when errors are present,
// a ValidationError.
func splitIssues(issues []Issue) ([]Issue, error) {
	var warnings []Issue
	var errs []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		} else {
			warnings = append(warnings, issue)
		}
	}
	if len(errs) > 0 {
		return warnings, &ValidationError{Issues: append(errs, warnings...)}
	}
	return warnings, nil
}

// Validate applies defaults and checks the whole configuration. Warnings are
// returned alongside a nil error; error-severity issues produce a
// *ValidationError.
func (c *Config) Validate() ([]Issue, error) {
	c.ApplyDefaults()

	var issues []Issue

	llmWarnings, err := ValidateLLM(&c.LLM)
	issues = append(issues, llmWarnings...)
	if err != nil {
		var verr *ValidationError
		if asValidation(err, &verr) {
			issues = append(issues, errorIssues(verr)...)
		} else {
			issues = append(issues, Issue{Code: "llm.invalid", Message: err.Error(), Severity: SeverityError})
		}
	}

	for _, entry := range c.SystemPrompt.Contributors {
		issues = append(issues, validateContributor(entry)...)
	}

	for name, srv := range c.McpServers {
		entry := srv
		if err := ValidateMcpServer(name, &entry); err != nil {
			issues = append(issues, Issue{
				Code:     "mcp.invalid",
				Message:  err.Error(),
				Severity: SeverityError,
				Context:  "mcpServers." + name,
			})
			continue
		}
		c.McpServers[name] = entry
	}

	if c.Sessions.MaxSessions < 1 {
		issues = append(issues, Issue{
			Code:     "sessions.maxSessions",
			Message:  "maxSessions must be at least 1",
			Severity: SeverityError,
			Context:  "sessions",
		})
	}
	if c.Sessions.SessionTTL < 1 {
		issues = append(issues, Issue{
			Code:     "sessions.sessionTTL",
			Message:  "sessionTTL must be positive",
			Severity: SeverityError,
			Context:  "sessions",
		})
	}

	switch c.Storage.Database.Type {
	case "in-memory", "sqlite", "postgres":
	default:
		issues = append(issues, Issue{
			Code:     "storage.database.type",
			Message:  fmt.Sprintf("unsupported database type %q", c.Storage.Database.Type),
			Severity: SeverityError,
			Context:  "storage",
		})
	}

	return splitIssues(issues)
}

// ValidateLLM resolves defaults in place and checks one LLM configuration.
func ValidateLLM(cfg *LLMConfig) ([]Issue, error) {
	var issues []Issue

	if cfg.Provider == "" && cfg.Model != "" {
		if provider, ok := InferProvider(cfg.Model); ok {
			cfg.Provider = provider
		}
	}

	info, known := registry[cfg.Provider]
	if !known {
		issues = append(issues, Issue{
			Code:     "llm.provider",
			Message:  fmt.Sprintf("unknown provider %q (supported: %s)", cfg.Provider, strings.Join(SupportedProviders(), ", ")),
			Severity: SeverityError,
			Context:  "llm.provider",
		})
		return splitIssues(issues)
	}

	if cfg.Model == "" {
		if name, ok := DefaultModel(cfg.Provider); ok {
			cfg.Model = name
		} else {
			issues = append(issues, Issue{
				Code:     "llm.model",
				Message:  fmt.Sprintf("model is required for provider %q", cfg.Provider),
				Severity: SeverityError,
				Context:  "llm.model",
			})
		}
	} else if !ModelCompatible(cfg.Provider, cfg.Model) {
		issues = append(issues, Issue{
			Code:     "llm.model",
			Message:  fmt.Sprintf("model %q is not compatible with provider %q", cfg.Model, cfg.Provider),
			Severity: SeverityError,
			Context:  "llm.model",
		})
	}

	cfg.Router = cfg.Router.Normalize()
	if cfg.Router == "" {
		cfg.Router = DefaultRouter(cfg.Provider)
	}
	if cfg.Router != RouterUnified && cfg.Router != RouterInBuilt {
		issues = append(issues, Issue{
			Code:     "llm.router",
			Message:  fmt.Sprintf("unknown router %q", cfg.Router),
			Severity: SeverityError,
			Context:  "llm.router",
		})
	} else if !SupportsRouter(cfg.Provider, cfg.Router) {
		issues = append(issues, Issue{
			Code:     "llm.router",
			Message:  fmt.Sprintf("provider %q does not support router %q; using %q", cfg.Provider, cfg.Router, DefaultRouter(cfg.Provider)),
			Severity: SeverityWarning,
			Context:  "llm.router",
		})
		cfg.Router = DefaultRouter(cfg.Provider)
	}

	if cfg.BaseURL != "" && !info.BaseURLAllowed {
		issues = append(issues, Issue{
			Code:     "llm.baseURL",
			Message:  fmt.Sprintf("baseURL is not permitted for provider %q", cfg.Provider),
			Severity: SeverityError,
			Context:  "llm.baseURL",
		})
	}

	if info.RequiresAPIKey && cfg.APIKey == "" {
		issues = append(issues, Issue{
			Code:     "llm.apiKey",
			Message:  fmt.Sprintf("apiKey is required for provider %q", cfg.Provider),
			Severity: SeverityError,
			Context:  "llm.apiKey",
		})
	}

	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 1) {
		issues = append(issues, Issue{
			Code:     "llm.temperature",
			Message:  fmt.Sprintf("temperature %v is outside [0,1]", *cfg.Temperature),
			Severity: SeverityError,
			Context:  "llm.temperature",
		})
	}

	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxIterations < 1 {
		issues = append(issues, Issue{
			Code:     "llm.maxIterations",
			Message:  "maxIterations must be at least 1",
			Severity: SeverityError,
			Context:  "llm.maxIterations",
		})
	}

	if cfg.MaxInputTokens < 0 {
		issues = append(issues, Issue{
			Code:     "llm.maxInputTokens",
			Message:  "maxInputTokens must not be negative",
			Severity: SeverityError,
			Context:  "llm.maxInputTokens",
		})
	}

	return splitIssues(issues)
}

// ValidateMcpServer resolves defaults in place and checks one server entry.
func ValidateMcpServer(name string, cfg *McpServerConfig) error {
	if name == "" {
		return fmt.Errorf("server name must not be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultMCPTimeout
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("server %q: timeout must be positive", name)
	}
	if cfg.ConnectionMode == "" {
		cfg.ConnectionMode = ConnectionLenient
	}
	if cfg.ConnectionMode != ConnectionStrict && cfg.ConnectionMode != ConnectionLenient {
		return fmt.Errorf("server %q: unknown connectionMode %q", name, cfg.ConnectionMode)
	}

	switch cfg.Type {
	case TransportStdio:
		if cfg.Command == "" {
			return fmt.Errorf("server %q: command is required for stdio transport", name)
		}
		if cfg.URL != "" {
			return fmt.Errorf("server %q: url is not valid for stdio transport", name)
		}
	case TransportSSE, TransportHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("server %q: url is required for %s transport", name, cfg.Type)
		}
		if cfg.Command != "" {
			return fmt.Errorf("server %q: command is not valid for %s transport", name, cfg.Type)
		}
	default:
		return fmt.Errorf("server %q: unknown transport type %q (supported: stdio, sse, http)", name, cfg.Type)
	}
	return nil
}

// validateContributor checks one systemPrompt contributor entry. The field
// set is strict: static entries carry content, dynamic entries a source.
func validateContributor(entry ContributorConfig) []Issue {
	var issues []Issue
	ctx := "systemPrompt.contributors." + entry.ID
	if entry.ID == "" {
		issues = append(issues, Issue{
			Code: "prompt.contributor.id", Message: "contributor id is required",
			Severity: SeverityError, Context: "systemPrompt.contributors",
		})
	}
	switch entry.Type {
	case "static":
		if entry.Content == "" {
			issues = append(issues, Issue{
				Code: "prompt.contributor.content", Message: "static contributor requires content",
				Severity: SeverityError, Context: ctx,
			})
		}
		if entry.Source != "" {
			issues = append(issues, Issue{
				Code: "prompt.contributor.source", Message: "static contributor must not set source",
				Severity: SeverityError, Context: ctx,
			})
		}
	case "dynamic":
		if entry.Source == "" {
			issues = append(issues, Issue{
				Code: "prompt.contributor.source", Message: "dynamic contributor requires source",
				Severity: SeverityError, Context: ctx,
			})
		}
		if entry.Content != "" {
			issues = append(issues, Issue{
				Code: "prompt.contributor.content", Message: "dynamic contributor must not set content",
				Severity: SeverityError, Context: ctx,
			})
		}
	default:
		issues = append(issues, Issue{
			Code: "prompt.contributor.type", Message: fmt.Sprintf("unknown contributor type %q", entry.Type),
			Severity: SeverityError, Context: ctx,
		})
	}
	return issues
}

func asValidation(err error, target **ValidationError) bool {
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}

func errorIssues(verr *ValidationError) []Issue {
	var out []Issue
	for _, issue := range verr.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}
