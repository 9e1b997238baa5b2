// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/USA-RedDragon/rtrproxy>

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/USA-RedDragon/rtrproxy/internal/config"
	"github.com/USA-RedDragon/rtrproxy/internal/logging"
	"github.com/USA-RedDragon/rtrproxy/internal/tracing"
	"github.com/USA-RedDragon/rtrproxy/internal/wiring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// NewCommand builds the rtrproxy root command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rtrproxy",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	cmd.Flags().StringP("config", "c", "", "path to the configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().CountP("verbose", "v", "increase logging verbosity; stacks, overrides log-level")
	cmd.Flags().CountP("quiet", "q", "decrease logging verbosity; stacks, overrides log-level")
	cmd.Flags().Bool("syslog", false, "log to syslog instead of log-target")
	cmd.Flags().String("syslog-facility", "", "syslog facility to log under when --syslog is set")
	cmd.Flags().String("logfile", "", "path to a log file, overriding log-target")
	cmd.Flags().String("pid-file", "", "write the process id to this path on startup")
	cmd.Flags().String("working-dir", "", "change to this directory before resolving relative paths")

	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("rtrproxy %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	configPath, err := cmd.Flags().GetString("config")
	if err != nil || configPath == "" {
		return fmt.Errorf("rtrproxy: -c/--config is required")
	}

	if workingDir, _ := cmd.Flags().GetString("working-dir"); workingDir != "" {
		if err := os.Chdir(workingDir); err != nil {
			return fmt.Errorf("rtrproxy: change working directory: %w", err)
		}
	}

	loaded, err := configulator.New[config.Config]().Load(configPath)
	if err != nil {
		return fmt.Errorf("rtrproxy: load config: %w", err)
	}
	cfg := &loaded
	cfg.ResolveRelativePaths(filepath.Dir(configPath))

	applyVerbosityOverrides(cmd, cfg)
	if syslogFlag, _ := cmd.Flags().GetBool("syslog"); syslogFlag {
		cfg.LogTarget = config.LogTargetSyslog
		cfg.LogFacility, _ = cmd.Flags().GetString("syslog-facility")
	}
	if logfile, _ := cmd.Flags().GetString("logfile"); logfile != "" {
		cfg.LogTarget = config.LogTargetFile
		cfg.LogFile = logfile
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rtrproxy: invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogTarget, cfg.LogFile, cfg.LogFacility)
	if err != nil {
		return fmt.Errorf("rtrproxy: build logger: %w", err)
	}

	if pidFile, _ := cmd.Flags().GetString("pid-file"); pidFile != "" {
		if err := os.WriteFile(pidFile, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644); err != nil {
			return fmt.Errorf("rtrproxy: write pid file: %w", err)
		}
		defer os.Remove(pidFile)
	}

	cleanup, err := tracing.Setup(ctx, cfg.Metrics.OTLPEndpoint, "rtrproxy")
	if err != nil {
		logger.Error("failed to set up tracing, continuing without it", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	built, err := wiring.Build(cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("rtrproxy: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	eg, egCtx := errgroup.WithContext(runCtx)
	eg.Go(func() error {
		return built.Graph.Run(egCtx)
	})

	servers := make([]*http.Server, 0, len(built.Engines))
	for addr, engine := range built.Engines {
		srv := &http.Server{Addr: addr, Handler: engine}
		servers = append(servers, srv)
		eg.Go(func() error {
			logger.Info("http listener starting", "listen", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http listener %s: %w", addr, err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http listener shutdown failed", "listen", srv.Addr, "error", err)
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("shutting down due to error", "error", err)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// applyVerbosityOverrides applies stacked -v/-q flags on top of the
// loaded log-level, per spec.md section 6.5.
func applyVerbosityOverrides(cmd *cobra.Command, cfg *config.Config) {
	verbose, _ := cmd.Flags().GetCount("verbose")
	quiet, _ := cmd.Flags().GetCount("quiet")
	delta := verbose - quiet
	if delta == 0 {
		return
	}

	levels := []config.LogLevel{config.LogLevelError, config.LogLevelWarn, config.LogLevelInfo, config.LogLevelDebug}
	idx := 0
	for i, l := range levels {
		if l == cfg.LogLevel {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(levels) {
		idx = len(levels) - 1
	}
	cfg.LogLevel = levels[idx]
}
