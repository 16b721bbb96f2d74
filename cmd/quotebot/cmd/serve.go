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

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/app"
	"github.com/your-org/warehouse-quote-assistant/internal/config"
)

type serveOptions struct {
	port  int
	watch bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quotation web service",
		Long: `Serve the quotation form, the quotation and chat APIs and the
health endpoint. With --watch the rule book and rate table are reloaded
whenever the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "reload rules and rates when the config file changes")

	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, logger := root.cfg, root.logger
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	gin.SetMode(cfg.Server.Mode)

	a, err := app.New(cfg, Version, logger)
	if err != nil {
		return err
	}

	if opts.watch {
		err := config.WatchConfig(root.configPath, logger, func(updated *config.Config) {
			if err := a.Reload(updated); err != nil {
				logger.Error("Failed to reload rules and rates", zap.Error(err))
				return
			}
			logger.Info("Rules and rates reloaded")
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Server.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
