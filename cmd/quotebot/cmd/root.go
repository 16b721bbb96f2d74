// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd provides the CLI commands for quotebot.
package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/config"
	"github.com/your-org/warehouse-quote-assistant/internal/logging"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "quotebot",
		Short: "Warehouse storage quotations and a rule-based assistant",
		Long: `quotebot prices warehouse storage requests, renders quotation
workbooks from templates and answers customer questions through a
rule-based chat assistant.

Examples:
  quotebot serve --port 5000
  quotebot quote --type "AC" --volume 100 --days 30 --wms
  quotebot chat "what is the rate for open yard"
  quotebot templates --dir ./templates`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				logging.Sync(opts.logger)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCommand(opts),
		newQuoteCommand(opts),
		newChatCommand(opts),
		newTemplatesCommand(opts),
		newVersionCommand(),
	)

	return root
}

// Execute runs the CLI
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	// A .env file is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	// Commands other than serve print their results to stdout.
	if cmd.Name() != "serve" && (cfg.Logging.Output == "" || cfg.Logging.Output == "stdout") {
		cfg.Logging.Output = "stderr"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}

	o.cfg = cfg
	o.logger = logger
	logger.Debug("Configuration loaded", zap.Any("config", cfg.MaskSensitiveValues()))
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quotebot version %s\n", Version)
		},
	}
}
