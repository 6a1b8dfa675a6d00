package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mehedi/stockhook/internal/api"
	"github.com/mehedi/stockhook/internal/config"
	"github.com/mehedi/stockhook/internal/dispatch"
	"github.com/mehedi/stockhook/internal/metrics"
	"github.com/mehedi/stockhook/internal/models"
	"github.com/mehedi/stockhook/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "stockhook",
		Short: "Stockhook — outbound webhook delivery engine",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(endpointCmd(&configPath))
	rootCmd.AddCommand(emitCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Stockhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			var sink metrics.Sink = metrics.NewNoopSink()
			if cfg.Metrics.Enabled {
				sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
			}

			dispatcher := dispatch.New(cfg.Delivery, store, sink, log, version)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			dispatcher.Start(ctx)

			server := api.NewServer(cfg.Server, store, dispatcher, cfg.Metrics.Enabled, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Int("workers", cfg.Delivery.Workers).
				Str("storage", cfg.Storage.Driver).
				Msg("Stockhook is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			dispatcher.Stop()

			log.Info().Msg("Stockhook stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Println("migrations completed successfully")
			return nil
		},
	}
}

func endpointCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage webhook endpoints",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			endpointURL, _ := cmd.Flags().GetString("url")
			events, _ := cmd.Flags().GetString("events")
			if tenant == "" || endpointURL == "" {
				return fmt.Errorf("--tenant and --url are required")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			var subscribed []string
			for _, ev := range strings.Split(events, ",") {
				if ev = strings.TrimSpace(ev); ev != "" {
					subscribed = append(subscribed, ev)
				}
			}

			now := time.Now().UTC()
			ep := &models.Endpoint{
				ID:               models.NewID("ep"),
				TenantID:         tenant,
				URL:              endpointURL,
				Secret:           models.NewSecret(),
				SubscribedEvents: subscribed,
				Status:           models.EndpointActive,
				CreatedAt:        now,
				UpdatedAt:        now,
			}

			if err := store.CreateEndpoint(context.Background(), ep); err != nil {
				return fmt.Errorf("failed to create endpoint: %w", err)
			}

			out, _ := json.MarshalIndent(ep, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	createCmd.Flags().String("tenant", "", "tenant id")
	createCmd.Flags().String("url", "", "endpoint URL")
	createCmd.Flags().String("events", "", "comma-separated event types (supports prefix.* wildcards)")

	listCmd := &cobra.Command{
		Use:   "list <tenant_id>",
		Short: "List a tenant's endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: stockhook endpoint list <tenant_id>")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			endpoints, err := store.ListEndpoints(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list endpoints: %w", err)
			}

			if len(endpoints) == 0 {
				fmt.Println("No endpoints found.")
				return nil
			}

			for _, ep := range endpoints {
				fmt.Printf("  %s  %-8s  failures=%-3d  %s  %v\n",
					ep.ID, ep.Status, ep.ConsecutiveFailures, ep.URL, ep.SubscribedEvents)
			}
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd,
		setStatusCmd(configPath, "enable", "Re-enable a disabled endpoint", models.EndpointActive),
		setStatusCmd(configPath, "disable", "Disable an endpoint", models.EndpointDisabled))
	return cmd
}

func setStatusCmd(configPath *string, use, short string, status models.EndpointStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <endpoint_id>",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: stockhook endpoint %s <endpoint_id>", use)
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ep, err := store.GetEndpoint(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get endpoint: %w", err)
			}
			if ep == nil {
				return fmt.Errorf("endpoint %s not found", args[0])
			}

			if err := store.SetEndpointStatus(context.Background(), args[0], status); err != nil {
				return fmt.Errorf("failed to %s endpoint: %w", use, err)
			}
			fmt.Printf("endpoint %s is now %s\n", args[0], status)
			return nil
		},
	}
}

func emitCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Emit a business event (enqueues deliveries, does not transmit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			eventType, _ := cmd.Flags().GetString("type")
			payload, _ := cmd.Flags().GetString("payload")
			if tenant == "" || eventType == "" {
				return fmt.Errorf("--tenant and --type are required")
			}
			if payload == "" {
				payload = "{}"
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload must be valid JSON")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := setupLogger(cfg.Logging)
			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			dispatcher := dispatch.New(cfg.Delivery, store, metrics.NewNoopSink(), log, version)
			n, err := dispatcher.Emit(context.Background(), tenant, eventType, json.RawMessage(payload))
			if err != nil {
				return fmt.Errorf("failed to emit event: %w", err)
			}
			fmt.Printf("enqueued %d deliveries\n", n)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant id")
	cmd.Flags().String("type", "", "event type, e.g. inventory.updated")
	cmd.Flags().String("payload", "{}", "JSON event payload")
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <endpoint_id>",
		Short: "Show delivery stats for an endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: stockhook stats <endpoint_id>")
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.GetDeliveryStats(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Stockhook v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	case "memory":
		log.Warn().Msg("using in-memory storage; deliveries will not survive restarts")
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
