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

package agent

import (
	"fmt"

	"github.com/teradata-labs/warp/pkg/config"
	"github.com/teradata-labs/warp/pkg/storage"
	"github.com/teradata-labs/warp/pkg/storage/postgres"
	"github.com/teradata-labs/warp/pkg/storage/sqlite"
)

// openStore builds the configured session store.
func openStore(cfg config.StorageConfig) (storage.SessionStore, error) {
	switch cfg.Database.Type {
	case "", "in-memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		if cfg.Database.Path == "" {
			return nil, fmt.Errorf("storage: sqlite requires database.path")
		}
		return sqlite.New(cfg.Database.Path)
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("storage: postgres requires database.dsn")
		}
		return postgres.New(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("storage: unknown database type %q", cfg.Database.Type)
	}
}
