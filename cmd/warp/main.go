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
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/warp/internal/version"
	"github.com/teradata-labs/warp/pkg/config"
)

var (
	configPath string
	sessionID  string
	stream     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "warp",
	Short:   "Warp - multi-session agent runtime",
	Long:    `Warp runs LLM-backed chat sessions with MCP tool servers, persistent conversation history, and runtime model switching. Point it at a config file and chat on stdin.`,
	Version: version.Get(),
	RunE:    runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./warp.yaml, $HOME/.config/warp/warp.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session to attach to (default: the default session)")
	rootCmd.Flags().BoolVar(&stream, "stream", true, "stream assistant output token by token")

	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export-config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.ApplyDefaults()
		out, err := config.Serialize(cfg, true)
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

// loadConfig resolves the config file through viper and parses it with the
// strict YAML schema. WARP_* environment variables override flat keys.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WARP")
	v.AutomaticEnv()

	if configPath == "" {
		configPath = v.GetString("CONFIG")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("warp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/warp")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	data, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	if key := v.GetString("API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
