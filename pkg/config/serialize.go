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

	"gopkg.in/yaml.v3"
)

// MaskedSecret replaces secret values when serializing with masking.
const MaskedSecret = "********"

// secretHeaders are request-header names whose values are masked.
var secretHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
}

// Parse decodes a YAML document into a Config. Defaults are not applied;
// callers validate afterwards.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return &cfg, nil
}

// Serialize encodes a config as YAML. With mask set, API keys, connection
// strings, and credential-bearing headers are replaced by MaskedSecret.
func Serialize(cfg *Config, mask bool) ([]byte, error) {
	out := cfg.Clone()
	if mask {
		if out.LLM.APIKey != "" {
			out.LLM.APIKey = MaskedSecret
		}
		if out.Storage.Database.DSN != "" {
			out.Storage.Database.DSN = MaskedSecret
		}
		for name, srv := range out.McpServers {
			for header := range srv.Headers {
				if secretHeaders[strings.ToLower(header)] {
					srv.Headers[header] = MaskedSecret
				}
			}
			out.McpServers[name] = srv
		}
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("serializing configuration: %w", err)
	}
	return data, nil
}
