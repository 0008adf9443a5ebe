package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commrouter/internal/config"
	"commrouter/internal/constants"
	"commrouter/internal/database"
	"commrouter/internal/httputil"
	"commrouter/internal/models"
	"commrouter/internal/service"
	"commrouter/internal/tracing"
	"commrouter/internal/validation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "commrouter",
		Short:        "Inbound communication routing engine",
		Long:         "commrouter resolves inbound email, SMS, voice and web-form messages to the team, program or user that owns them.",
		Version:      fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.json", "path to the configuration file (JSON or YAML)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable verbose logging (includes sensitive information)")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(resolveCmd(opts))
	root.AddCommand(migrateCmd(opts))
	root.AddCommand(seedCmd(opts))
	return root
}

// load reads the dotenv file and the configuration and builds the logger.
func (o *rootOptions) load() (*models.Config, *logrus.Logger, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, newLogger(cfg.LogLevel, o.verbose), nil
}

func newLogger(level string, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return logger
	}
	logger.SetLevel(parseLevel(logger, level))
	return logger
}

// parseLevel never goes below info without --verbose so message content
// stays out of the logs.
func parseLevel(logger *logrus.Logger, level string) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", level)
		return logrus.InfoLevel
	}
	if parsed > logrus.InfoLevel {
		return logrus.InfoLevel
	}
	return parsed
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP routing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting commrouter")

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.runPurger(ctx)

	watcher := config.NewConfigWatcher(opts.configPath, logger)
	watcher.OnConfigChange(func(next *models.Config) {
		if err := a.flags.LoadFromConfig(next.Features); err != nil {
			logger.WithError(err).Warn("Ignoring unknown feature flags in reloaded configuration")
		}
		if opts.verbose || opts.logLevel != "" {
			return
		}
		logger.SetLevel(parseLevel(logger, next.LogLevel))
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	server := NewServer(cfg.Server, a.intake, a.calls, a.db, a.registry, a.flags, logger, opts.verbose)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func resolveCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Route one inbound message read from a JSON file",
		Long: `Runs a single normalized inbound message through the full intake
pipeline (duplicate window, resolution, persistence, events) and prints the
result as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read message file: %w", err)
			}
			var msg models.InboundMessage
			if err := httputil.DecodeJSONBytes(data, &msg); err != nil {
				return err
			}
			if err := validation.ValidateInboundEnvelope(&msg); err != nil {
				return err
			}
			if msg.ReceivedAt.IsZero() {
				msg.ReceivedAt = time.Now().UTC()
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := service.WithVerboseLogging(cmd.Context(), opts.verbose)
			result, err := a.intake.Process(ctx, &msg)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the inbound message JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.WithField("path", cfg.Database.Path).Info("Database schema is up to date")

			if purge {
				window := time.Duration(cfg.Routing.DuplicateWindowMin) * time.Minute
				purged, err := db.PurgeProcessed(cmd.Context(), window)
				if err != nil {
					return err
				}
				logger.WithField(service.LogFieldCount, purged).Info("Purged processed message claims")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge-claims", false, "also drop message claims older than the duplicate window")
	return cmd
}

func seedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load directory fixtures (programs, teams, users, parties) from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := database.LoadFixtures(file)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Seed(cmd.Context(), fixtures); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
			logger.WithField("file", file).Info("Fixtures loaded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the fixtures YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
