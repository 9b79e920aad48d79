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

	"github.com/relaywire/relaywire/connection"
	"github.com/relaywire/relaywire/credential"
	"github.com/relaywire/relaywire/internal/config"
	"github.com/relaywire/relaywire/internal/logger"
	"github.com/relaywire/relaywire/internal/metrics"
	"github.com/relaywire/relaywire/protocol"
	"github.com/relaywire/relaywire/session"
	websockettransport "github.com/relaywire/relaywire/transport/websocket"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "relaywire direct (LAN) WebSocket server",
	Long: `relayd serves the secure multiplexed transport directly: SRP-6a
authentication, resumable sessions, and the envelope-framed application
protocol (requests, subscriptions, chunked uploads) over one WebSocket
per client, with no pair server in front of it.`,
	RunE: runRelayd,
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

func runRelayd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.Info("relayd starting", logger.String("bind_addr", cfg.Server.BindAddr), logger.String("store_backend", cfg.Store.Backend))

	credentials, sessions, err := openStores(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}

	srv := websockettransport.NewServer(connection.Deps{
		Credentials: credentials,
		Sessions:    sessions,
		Router:      protocol.EchoRouter{},
		Events:      &protocol.MockEventSource{},
		Uploads:     protocol.NewMockUploadSink(),
		Logger:      log,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	httpSrv := &http.Server{Addr: cfg.Server.BindAddr, Handler: mux}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", logger.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("relayd shutting down")
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config) (credential.Store, session.Store, error) {
	if cfg.Store.Backend == "postgres" {
		creds, err := credential.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("credential store: %w", err)
		}
		sessions, err := session.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		return creds, sessions, nil
	}
	return credential.NewMemoryStore(), session.NewMemoryStore(), nil
}
