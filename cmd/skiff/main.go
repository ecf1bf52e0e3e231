package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborlabs/skiff/internal/api"
	"github.com/harborlabs/skiff/internal/config"
	"github.com/harborlabs/skiff/internal/event"
	"github.com/harborlabs/skiff/internal/gateway"
	"github.com/harborlabs/skiff/internal/session"
	"github.com/harborlabs/skiff/internal/watch"
	"github.com/harborlabs/skiff/internal/workdir"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "skiff",
		Short:         "Local dashboard server for the strand agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "skiff:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the skiff version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if env := os.Getenv("SKIFF_ADDR"); env != "" {
				cfg.Server.Addr = env
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "skiff.yaml", "path to the skiff config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and SKIFF_ADDR)")
	return cmd
}

func run(cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	bus := event.NewBus()
	defer bus.Close()

	registry := session.NewRegistry(session.Options{
		RingCap:      cfg.Sessions.RingCap,
		MaxAge:       cfg.Sessions.MaxAge,
		ReapInterval: cfg.Sessions.ReapInterval,
		KillGrace:    cfg.Sessions.KillGrace,
		Logger:       logger,
		Bus:          bus,
	})

	reapCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go registry.RunReaper(reapCtx)

	var gw gateway.Caller
	if cfg.Runtime.GatewayURL != "" {
		gw = gateway.New(cfg.Runtime.GatewayURL)
	}

	var guard *workdir.Guard
	if cfg.Workdir.Root != "" {
		guard = workdir.NewGuard(cfg.Workdir.Root)
	}

	if cfg.Runtime.ConfigPath != "" {
		w, err := watch.New(cfg.Runtime.ConfigPath, bus, logger)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			logger.Warn("runtime config watch disabled", "path", cfg.Runtime.ConfigPath, "err", err)
		} else {
			defer w.Stop()
		}
	}

	server := api.NewServer(registry, bus, gw, guard, cfg, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Sessions go first: terminating them closes their feeds, which ends
	// any attached streams, so the HTTP drain below can finish.
	registry.Shutdown(ctx)
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}

	logger.Info("server stopped")
	return nil
}
