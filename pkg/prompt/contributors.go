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

package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/warp/internal/csync"
	"github.com/teradata-labs/warp/pkg/config"
)

// Contributor produces one section of the system prompt.
type Contributor interface {
	// ID identifies the contributor and breaks priority ties.
	ID() string

	// Priority orders contributors ascending.
	Priority() int

	// Enabled reports whether the contributor takes part in assembly.
	Enabled() bool

	// Resolve produces the contributor's text.
	Resolve(ctx context.Context) (string, error)
}

// StaticContributor returns fixed text.
type StaticContributor struct {
	id       string
	priority int
	enabled  bool
	content  string
}

// NewStatic builds a static contributor.
func NewStatic(id string, priority int, enabled bool, content string) *StaticContributor {
	return &StaticContributor{id: id, priority: priority, enabled: enabled, content: content}
}

func (c *StaticContributor) ID() string    { return c.id }
func (c *StaticContributor) Priority() int { return c.priority }
func (c *StaticContributor) Enabled() bool { return c.enabled }

func (c *StaticContributor) Resolve(context.Context) (string, error) {
	return c.content, nil
}

// DateTimeContributor injects the current date and time so the model does
// not have to guess it.
type DateTimeContributor struct {
	id       string
	priority int
	enabled  bool
	now      func() time.Time
}

// NewDateTime builds a dateTime contributor.
func NewDateTime(id string, priority int, enabled bool) *DateTimeContributor {
	return &DateTimeContributor{id: id, priority: priority, enabled: enabled, now: time.Now}
}

func (c *DateTimeContributor) ID() string    { return c.id }
func (c *DateTimeContributor) Priority() int { return c.priority }
func (c *DateTimeContributor) Enabled() bool { return c.enabled }

func (c *DateTimeContributor) Resolve(context.Context) (string, error) {
	return "Current date and time: " + c.now().UTC().Format(time.RFC3339), nil
}

// ResourceReader fetches resource content by URI. The MCP manager satisfies
// this.
type ResourceReader interface {
	ReadResourceText(ctx context.Context, uri string) (string, error)
}

// resourceCacheTTL bounds how stale a cached resource may get between
// prompt builds.
const resourceCacheTTL = 30 * time.Second

type cachedResource struct {
	text    string
	fetched time.Time
}

// ResourceContributor reads a resource URI through the reader and caches it
// briefly so back-to-back turns do not refetch.
type ResourceContributor struct {
	id       string
	priority int
	enabled  bool
	uri      string
	reader   ResourceReader
	cache    *csync.Map[string, cachedResource]
	now      func() time.Time
}

// NewResource builds a resource contributor for a "resource:<uri>" source.
func NewResource(id string, priority int, enabled bool, uri string, reader ResourceReader) *ResourceContributor {
	return &ResourceContributor{
		id:       id,
		priority: priority,
		enabled:  enabled,
		uri:      uri,
		reader:   reader,
		cache:    csync.NewMap[string, cachedResource](),
		now:      time.Now,
	}
}

func (c *ResourceContributor) ID() string    { return c.id }
func (c *ResourceContributor) Priority() int { return c.priority }
func (c *ResourceContributor) Enabled() bool { return c.enabled }

func (c *ResourceContributor) Resolve(ctx context.Context) (string, error) {
	if cached, ok := c.cache.Get(c.uri); ok && c.now().Sub(cached.fetched) < resourceCacheTTL {
		return cached.text, nil
	}
	if c.reader == nil {
		return "", fmt.Errorf("no resource reader for %q", c.uri)
	}
	text, err := c.reader.ReadResourceText(ctx, c.uri)
	if err != nil {
		return "", fmt.Errorf("reading resource %q: %w", c.uri, err)
	}
	c.cache.Set(c.uri, cachedResource{text: text, fetched: c.now()})
	return text, nil
}

// fromConfig builds the contributor matching one config entry.
func fromConfig(entry config.ContributorConfig, reader ResourceReader) (Contributor, error) {
	enabled := entry.IsEnabled()
	switch entry.Type {
	case "static":
		return NewStatic(entry.ID, entry.Priority, enabled, entry.Content), nil
	case "dynamic":
		switch {
		case entry.Source == "dateTime":
			return NewDateTime(entry.ID, entry.Priority, enabled), nil
		case strings.HasPrefix(entry.Source, "resource:"):
			uri := strings.TrimPrefix(entry.Source, "resource:")
			return NewResource(entry.ID, entry.Priority, enabled, uri, reader), nil
		default:
			return nil, fmt.Errorf("contributor %q: unknown source %q", entry.ID, entry.Source)
		}
	default:
		return nil, fmt.Errorf("contributor %q: unknown type %q", entry.ID, entry.Type)
	}
}
