package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evlocate/foundation/config"
	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/db"
	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/health"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/retention"
	"github.com/evlocate/foundation/server"
	"github.com/evlocate/foundation/sources"
	"github.com/evlocate/foundation/sym"
	"github.com/evlocate/foundation/track"
	"github.com/evlocate/foundation/validate"
)

// ServeCmd starts the quality tracking server
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: sym.Serve + " Start the quality tracking server",
	Long: sym.Serve + ` serve — Start the quality tracking server

Loads source contracts, opens the metadata database, and serves the
health, history, and dashboard API plus the live record stream.

Examples:
  foundation serve                  # Listen on the configured port
  foundation serve --port 9000      # Override the port`,
	RunE: runServe,
}

var servePortFlag int

func init() {
	ServeCmd.Flags().IntVar(&servePortFlag, "port", 0, "Override the configured listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if servePortFlag > 0 {
		cfg.Server.Port = servePortFlag
	}

	log := logger.Logger

	database, err := db.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	registry := contract.NewRegistry()
	registered, err := contract.RegisterFile(registry, cfg.Contracts.Path)
	if err != nil {
		return errors.Wrapf(err, "failed to load contracts from %s", cfg.Contracts.Path)
	}
	log.Infow("contracts registered",
		logger.FieldSymbol, sym.Valid,
		logger.FieldCount, registered,
		"path", cfg.Contracts.Path,
	)

	validator := validate.NewValidator(registry)
	validator.SetWeights(validate.Weights{
		Error:             cfg.Scoring.ErrorWeight,
		Warning:           cfg.Scoring.WarningWeight,
		NearBoundFraction: cfg.Scoring.NearBoundFraction,
	})

	store := metadata.NewStore(database, log)
	tracker := track.NewTracker(registry, validator, store, log)
	aggregator := health.NewAggregator(registry, store, log)

	srv := server.New(cfg.Server, registry, store, aggregator, log)
	tracker.SetNotifier(srv.Hub())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Retention.MaxAge() > 0 {
		sweeper := retention.NewSweeper(ctx, store, cfg.Retention.MaxAge(), cfg.Retention.SweepInterval(), log)
		sweeper.Start()
		defer sweeper.Stop()
	} else {
		log.Infow("retention sweep disabled", logger.FieldSymbol, sym.Sweep)
	}

	// Scoring weights follow the config file without a restart
	if watcher := startWeightWatcher(validator); watcher != nil {
		defer watcher.Stop()
	}

	// Poll every contract that declares an endpoint
	poller := sources.NewPoller(ctx, registry, tracker, sources.NewClient(cfg.Sources, log), log)
	poller.Start()
	defer poller.Stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down", logger.FieldSymbol, sym.Serve)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// configFileName is the config file watched for scoring weight changes
const configFileName = "foundation.toml"

// startWeightWatcher wires config file changes to the validator's scoring
// weights. A missing config file just means there is nothing to watch.
func startWeightWatcher(validator *validate.Validator) *config.Watcher {
	if _, err := os.Stat(configFileName); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(configFileName)
	if err != nil {
		logger.Warnw("Failed to watch config file", "path", configFileName, logger.FieldError, err)
		return nil
	}

	watcher.OnReload(func(cfg *config.Config) error {
		validator.SetWeights(validate.Weights{
			Error:             cfg.Scoring.ErrorWeight,
			Warning:           cfg.Scoring.WarningWeight,
			NearBoundFraction: cfg.Scoring.NearBoundFraction,
		})
		logger.Infow("Scoring weights reloaded",
			"error_weight", cfg.Scoring.ErrorWeight,
			"warning_weight", cfg.Scoring.WarningWeight,
		)
		return nil
	})
	watcher.Start()
	return watcher
}
