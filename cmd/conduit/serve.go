package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-ai/conduit"
	"github.com/conduit-ai/conduit/internal/config"
	httpAdapter "github.com/conduit-ai/conduit/pkg/adapters/http"
	promAdapter "github.com/conduit-ai/conduit/pkg/adapters/prometheus"
	"github.com/conduit-ai/conduit/pkg/observability"
	"github.com/conduit-ai/conduit/pkg/ports"
	prom "github.com/prometheus/client_golang/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the bridge against the configured runtime and exposes the tool execution API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("port") {
			cfg.HTTP.Port = port
		}

		recorder := observability.NewRecorder(prom.DefaultRegisterer)

		backend, err := conduit.New(cfg,
			conduit.WithLogger(slog.Default()),
			conduit.WithMetrics(promAdapter.NewSink(prom.DefaultRegisterer)),
			conduit.WithHooks(recorder.Hooks()),
		)
		if err != nil {
			fmt.Printf("Error initializing conduit: %v\n", err)
			os.Exit(1)
		}
		defer backend.Close()

		seedConnectorSources(cfg, backend.Store)

		// A failed first dial is not fatal: the bridge keeps reconnecting
		// in the background.
		if err := backend.Bridge.Connect(context.Background()); err != nil {
			slog.Warn("Runtime unreachable at startup, reconnecting", "error", err)
		}

		handler := httpAdapter.NewHandler(backend.Bridge, backend.Registry, slog.Default())

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			slog.Info("Starting Conduit server", "addr", srv.Addr, "runtime", cfg.Runtime.BaseURL)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			slog.Info("Shutdown signal received", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("Graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					slog.Error("Error killing server", "error", err)
				}
			}
			slog.Info("Conduit server stopped gracefully")
		}
	},
}

// seedConnectorSources persists configured marketplace entries so API-side
// consumers see them alongside dynamically registered ones.
func seedConnectorSources(cfg *config.Config, store ports.RecordStore) {
	sources, err := cfg.ConnectorSources()
	if err != nil {
		slog.Warn("Skipping connector sources", "error", err)
		return
	}
	ctx := context.Background()
	for _, src := range sources {
		if err := store.Put(ctx, ports.KindConnectorSource, src.ID, src); err != nil {
			slog.Warn("Failed to persist connector source", "source", src.Name, "error", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (overrides config)")
}
