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

// Package config defines the agent configuration schema, its defaults and
// validation, and the static provider/model registry. Loading the file from
// disk is the CLI's job; this package owns the parsed shape.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	DefaultMaxIterations = 50
	DefaultMaxSessions   = 100
	DefaultSessionTTL    = Duration(time.Hour)
	DefaultMCPTimeout    = Duration(30 * time.Second)
)

// Router selects how an adapter drives multi-step tool use.
type Router string

const (
	// RouterUnified delegates provider differences to the vendor-agnostic
	// LLM SDK.
	RouterUnified Router = "unified"

	// RouterInBuilt calls the provider SDK directly and owns the step
	// handling in the adapter.
	RouterInBuilt Router = "in-built"
)

// routerVercel is the legacy spelling of RouterUnified, accepted on parse.
const routerVercel Router = "vercel"

// Normalize maps legacy router spellings to their canonical value.
func (r Router) Normalize() Router {
	if r == routerVercel {
		return RouterUnified
	}
	return r
}

// Duration wraps time.Duration with YAML support for both duration strings
// ("30s") and integer milliseconds (30000).
type Duration time.Duration

// Std converts to a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String renders the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full configuration the core consumes.
type Config struct {
	// SystemPrompt configures the prompt contributors.
	SystemPrompt SystemPromptConfig `yaml:"systemPrompt"`

	// LLM is the baseline model configuration.
	LLM LLMConfig `yaml:"llm"`

	// McpServers maps server name to its connection settings.
	McpServers map[string]McpServerConfig `yaml:"mcpServers,omitempty"`

	// Sessions bounds the in-memory session cache.
	Sessions SessionsConfig `yaml:"sessions"`

	// Storage selects the persistence backends.
	Storage StorageConfig `yaml:"storage"`
}

// LLMConfig selects a provider, model, and router plus generation limits.
type LLMConfig struct {
	Provider        string   `yaml:"provider"`
	Model           string   `yaml:"model"`
	APIKey          string   `yaml:"apiKey,omitempty"`
	Router          Router   `yaml:"router,omitempty"`
	BaseURL         string   `yaml:"baseURL,omitempty"`
	MaxInputTokens  int      `yaml:"maxInputTokens,omitempty"`
	MaxOutputTokens int      `yaml:"maxOutputTokens,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	MaxIterations   int      `yaml:"maxIterations,omitempty"`
}

// Clone returns a deep copy.
func (c LLMConfig) Clone() LLMConfig {
	out := c
	if c.Temperature != nil {
		t := *c.Temperature
		out.Temperature = &t
	}
	return out
}

// Merge folds a partial overlay over the receiver. Set fields in the overlay
// win; unset fields keep the receiver's values.
func (c LLMConfig) Merge(overlay LLMConfig) LLMConfig {
	out := c.Clone()
	if overlay.Provider != "" {
		out.Provider = overlay.Provider
	}
	if overlay.Model != "" {
		out.Model = overlay.Model
	}
	if overlay.APIKey != "" {
		out.APIKey = overlay.APIKey
	}
	if overlay.Router != "" {
		out.Router = overlay.Router.Normalize()
	}
	if overlay.BaseURL != "" {
		out.BaseURL = overlay.BaseURL
	}
	if overlay.MaxInputTokens > 0 {
		out.MaxInputTokens = overlay.MaxInputTokens
	}
	if overlay.MaxOutputTokens > 0 {
		out.MaxOutputTokens = overlay.MaxOutputTokens
	}
	if overlay.Temperature != nil {
		t := *overlay.Temperature
		out.Temperature = &t
	}
	if overlay.MaxIterations > 0 {
		out.MaxIterations = overlay.MaxIterations
	}
	return out
}

// TransportType identifies the MCP wire transport.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportSSE   TransportType = "sse"
	TransportHTTP  TransportType = "http"
)

// ConnectionMode controls how a connection failure at startup is treated.
type ConnectionMode string

const (
	// ConnectionStrict aborts agent start when the server cannot connect.
	ConnectionStrict ConnectionMode = "strict"

	// ConnectionLenient records the failure and continues.
	ConnectionLenient ConnectionMode = "lenient"
)

// McpServerConfig configures one MCP server connection. Command/Args/Env
// apply to stdio; URL/Headers to sse and http.
type McpServerConfig struct {
	Type           TransportType     `yaml:"type"`
	Command        string            `yaml:"command,omitempty"`
	Args           []string          `yaml:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty"`
	URL            string            `yaml:"url,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Timeout        Duration          `yaml:"timeout,omitempty"`
	ConnectionMode ConnectionMode    `yaml:"connectionMode,omitempty"`
}

// Clone returns a deep copy.
func (c McpServerConfig) Clone() McpServerConfig {
	out := c
	if c.Args != nil {
		out.Args = append([]string(nil), c.Args...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// SessionsConfig bounds the session manager.
type SessionsConfig struct {
	// MaxSessions caps live in-memory sessions; persisted sessions may
	// exceed it.
	MaxSessions int `yaml:"maxSessions,omitempty"`

	// SessionTTL evicts sessions idle longer than this.
	SessionTTL Duration `yaml:"sessionTTL,omitempty"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	Cache    StorageBackendConfig `yaml:"cache"`
	Database StorageBackendConfig `yaml:"database"`
}

// StorageBackendConfig names one backend.
type StorageBackendConfig struct {
	// Type is one of "in-memory", "sqlite", "postgres".
	Type string `yaml:"type,omitempty"`

	// Path is the database file for sqlite.
	Path string `yaml:"path,omitempty"`

	// DSN is the connection string for postgres.
	DSN string `yaml:"dsn,omitempty"`
}

// ContributorConfig is one entry of the contributor list form of
// systemPrompt.
type ContributorConfig struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Priority int    `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Content  string `yaml:"content,omitempty"`
	Source   string `yaml:"source,omitempty"`
}

// IsEnabled reports the effective enabled flag; contributors default to
// enabled.
func (c ContributorConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SystemPromptConfig is either a plain string or a contributor list. The
// YAML field accepts both shapes.
type SystemPromptConfig struct {
	// Raw is the plain string form.
	Raw string `yaml:"-"`

	// Contributors is the structured form.
	Contributors []ContributorConfig `yaml:"-"`
}

// Effective returns the contributor list, converting the string form into a
// single static contributor.
func (c SystemPromptConfig) Effective() []ContributorConfig {
	if len(c.Contributors) > 0 {
		return c.Contributors
	}
	if c.Raw == "" {
		return nil
	}
	return []ContributorConfig{{ID: "system", Type: "static", Content: c.Raw}}
}

// Clone returns a deep copy.
func (c SystemPromptConfig) Clone() SystemPromptConfig {
	out := c
	if c.Contributors != nil {
		out.Contributors = make([]ContributorConfig, len(c.Contributors))
		for i, entry := range c.Contributors {
			cp := entry
			if entry.Enabled != nil {
				b := *entry.Enabled
				cp.Enabled = &b
			}
			out.Contributors[i] = cp
		}
	}
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler for the string-or-object form.
func (c *SystemPromptConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&c.Raw)
	}
	var structured struct {
		Contributors []ContributorConfig `yaml:"contributors"`
	}
	if err := value.Decode(&structured); err != nil {
		return fmt.Errorf("systemPrompt must be a string or a contributors object: %w", err)
	}
	c.Contributors = structured.Contributors
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting whichever form is set.
func (c SystemPromptConfig) MarshalYAML() (interface{}, error) {
	if len(c.Contributors) > 0 {
		return map[string][]ContributorConfig{"contributors": c.Contributors}, nil
	}
	return c.Raw, nil
}

// Clone returns a deep copy of the whole config.
func (c *Config) Clone() Config {
	out := Config{
		SystemPrompt: c.SystemPrompt.Clone(),
		LLM:          c.LLM.Clone(),
		Sessions:     c.Sessions,
		Storage:      c.Storage,
	}
	if c.McpServers != nil {
		out.McpServers = make(map[string]McpServerConfig, len(c.McpServers))
		for name, srv := range c.McpServers {
			out.McpServers[name] = srv.Clone()
		}
	}
	return out
}

// ApplyDefaults fills unset fields. Safe to call repeatedly.
func (c *Config) ApplyDefaults() {
	c.LLM.Router = c.LLM.Router.Normalize()
	if c.LLM.Router == "" {
		c.LLM.Router = DefaultRouter(c.LLM.Provider)
	}
	if c.LLM.MaxIterations == 0 {
		c.LLM.MaxIterations = DefaultMaxIterations
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = DefaultMaxSessions
	}
	if c.Sessions.SessionTTL == 0 {
		c.Sessions.SessionTTL = DefaultSessionTTL
	}
	if c.Storage.Cache.Type == "" {
		c.Storage.Cache.Type = "in-memory"
	}
	if c.Storage.Database.Type == "" {
		c.Storage.Database.Type = "in-memory"
	}
	for name, srv := range c.McpServers {
		if srv.Timeout == 0 {
			srv.Timeout = DefaultMCPTimeout
		}
		if srv.ConnectionMode == "" {
			srv.ConnectionMode = ConnectionLenient
		}
		c.McpServers[name] = srv
	}
}
