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

	"github.com/agentsync/collab/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage collabd configuration and secrets",
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [api-key]",
	Short: "Save the Anthropic API key to the system keyring",
	Long: `Save the Anthropic API key to the system keyring securely
(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux)
so it need not be passed via flag or environment variable on every run.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigSetKey,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run:   runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigSetKey(cmd *cobra.Command, args []string) {
	if err := config.SaveAPIKey(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving API key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("API key saved to system keyring.")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("server: %s:%d (http %d)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.HTTPPort)
	fmt.Printf("llm:    provider=%s model=%s\n", cfg.LLM.Provider, cfg.LLM.AnthropicModel)
	fmt.Printf("storage: driver=%s dsn=%s\n", cfg.Storage.Driver, cfg.Storage.DSN)
	fmt.Printf("stale:  enabled=%v schedule=%q threshold=%s\n", cfg.Stale.Enabled, cfg.Stale.Schedule, cfg.Stale.StaleThreshold)
}
