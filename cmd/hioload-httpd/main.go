// File: cmd/hioload-httpd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command hioload-httpd serves static files and CGI scripts from a
// single-threaded epoll reactor.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/pkg/logger"
	"github.com/momentics/hioload-httpd/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "configs/hioload-httpd.toml"

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hioload-httpd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hioload-httpd version %s\n", version)
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d server(s)\n", len(cfg.Servers))
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd = &cobra.Command{
		Use:           "hioload-httpd",
		Short:         "Event-driven HTTP/1.1 server with CGI support",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "", "path to configuration file (.toml, .yaml)")
	rootCmd.AddCommand(serveCmd, validateCmd, versionCmd)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("HIOLOAD_HTTPD_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.NewLoader(nil).LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func serve(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics := control.NewMetrics(control.DefaultNamespace)
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	control.NewConfigStore(cfg).Register(probes)
	publisher := control.NewStatePublisher()
	publisher.Register(probes)

	srv, err := server.New(cfg,
		server.WithLogger(log),
		server.WithObserver(metrics),
		server.WithPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Addr != "" {
		hs := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           control.NewMux(metrics, probes),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("control endpoint listening", zap.String("addr", cfg.Metrics.Addr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("control endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("hioload-httpd stopped", zap.Error(err))
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hioload-httpd:", err)
		os.Exit(1)
	}
}
