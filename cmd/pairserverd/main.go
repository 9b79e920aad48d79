// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaywire/relaywire/internal/config"
	"github.com/relaywire/relaywire/internal/logger"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/relay"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "pairserverd",
	Short: "relaywire pair server (relay)",
	Long: `pairserverd matches one registered server socket to one client
socket per username and thereafter blindly pipes bytes between them. It
never decrypts anything and holds no state beyond the pairing map.`,
	RunE: runPairserverd,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&configDir, "config-dir", "config", "directory containing <env>.yaml/default.yaml/config.yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPairserverd(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.Info("pairserverd starting", logger.String("bind_addr", cfg.Relay.BindAddr))

	srv := relay.New(relay.Deps{
		RateLimitPerSec: cfg.Relay.RateLimitPerSec,
		RateLimitBurst:  cfg.Relay.RateLimitBurst,
		Logger:          log,
	})

	mux := http.NewServeMux()
	mux.Handle("/relay", srv.Handler())
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	httpSrv := &http.Server{Addr: cfg.Relay.BindAddr, Handler: mux}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", logger.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("pairserverd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
