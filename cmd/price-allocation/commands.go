package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/iwvelando/price-allocation/internal/allocation"
	"github.com/iwvelando/price-allocation/internal/config"
	"github.com/iwvelando/price-allocation/internal/metrics"
	"github.com/iwvelando/price-allocation/internal/optimizer"
	"github.com/iwvelando/price-allocation/internal/prices"
	"github.com/iwvelando/price-allocation/internal/server"
	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/iwvelando/price-allocation/pkg/output"
	"github.com/iwvelando/price-allocation/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// openRunner opens the configured store and wraps it in a Runner.
func openRunner(ctx context.Context, g *globals) (*optimizer.Runner, prices.Store, error) {
	store, err := prices.Open(ctx, g.logger, g.conf.Database)
	if err != nil {
		return nil, nil, err
	}
	runner, err := optimizer.NewRunner(g.logger, g.conf, store, nil)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return runner, store, nil
}

func newIngestCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Download prices and add new observations to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(); err != nil {
				return err
			}
			defer g.sync()

			ctx := cmd.Context()
			runner, store, err := openRunner(ctx, g)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			source := prices.NewSource(g.logger, g.conf.Source, &http.Client{})
			report, err := runner.Ingest(ctx, source)
			if err != nil {
				return err
			}

			p := message.NewPrinter(language.English)
			_, _ = p.Fprintf(cmd.OutOrStdout(), "fetched %d observations, inserted %d, stored %d\n",
				report.Fetched, report.Inserted, report.Stored)
			return nil
		},
	}
}

type optimizeOptions struct {
	outputFormat string
	outputDir    string
	noArtifact   bool
}

func newOptimizeCommand(g *globals) *cobra.Command {
	o := &optimizeOptions{}

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Allocate the target total across the oldest stored prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(); err != nil {
				return err
			}
			defer g.sync()

			// CLI override takes precedence over config
			format := g.conf.Output.Format
			if o.outputFormat != "" {
				format = o.outputFormat
			}
			if err := validation.ValidateOutputFormat(format); err != nil {
				return err
			}
			dir := g.conf.Output.Directory
			if o.outputDir != "" {
				dir = o.outputDir
			}

			ctx := cmd.Context()
			runner, store, err := openRunner(ctx, g)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			outcome, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			if !o.noArtifact {
				path, err := output.WriteArtifact(dir, outcome.Table)
				if err != nil {
					return err
				}
				g.logger.Info("wrote allocation artifact",
					zap.String("op", "main"),
					zap.String("path", path),
				)
			}

			return output.Format(cmd.OutOrStdout(), format, outcome.Table)
		},
	}

	cmd.Flags().StringVar(&o.outputFormat, "output-format", "", "type of output override: pretty, csv")
	cmd.Flags().StringVar(&o.outputDir, "output-dir", "", "directory for the allocation artifact")
	cmd.Flags().BoolVar(&o.noArtifact, "no-artifact", false, "skip writing the allocation artifact")

	return cmd
}

type sweepOptions struct {
	weights []float64
	workers int
}

func newSweepCommand(g *globals) *cobra.Command {
	o := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compare cost and roughness across smoothness weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setup(); err != nil {
				return err
			}
			defer g.sync()

			weights := g.conf.Optimizer.SweepWeights
			if cmd.Flags().Changed("weights") {
				if err := validation.ValidateWeights(o.weights); err != nil {
					return fmt.Errorf("invalid --weights: %w", err)
				}
				weights = o.weights
			}
			if len(weights) == 0 {
				return errors.New("no smoothness weights given; set --weights or optimizer.sweepWeights")
			}
			workers := g.conf.Optimizer.SweepWorkers
			if o.workers > 0 {
				workers = o.workers
			}

			ctx := cmd.Context()
			store, err := prices.Open(ctx, g.logger, g.conf.Database)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.Close()
			}()

			observations, err := store.OldestPrices(ctx, g.conf.Optimizer.RecordLimit)
			if err != nil {
				return err
			}
			series, err := allocation.NewPriceSeries(observations)
			if err != nil {
				return err
			}

			points, err := optimizer.Sweep(ctx, g.logger, series, g.conf.Optimizer.Settings(), weights, workers)
			if err != nil {
				return err
			}

			p := message.NewPrinter(language.English)
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Weight     | Objective      | Cost           | Roughness    | Iterations | Status\n")
			_, _ = fmt.Fprintf(w, "______     | _________      | ____           | _________    | __________ | ______\n")
			for _, pt := range points {
				_, _ = p.Fprintf(w, "%10.2f | %14.4f | %14.4f | %12.6f | %10d | %s\n",
					pt.SmoothnessWeight, pt.Objective, pt.Cost, pt.Roughness, pt.Iterations, pt.Status)
			}
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&o.weights, "weights", nil, "comma-separated smoothness weights, e.g. 0,10,50,100")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "concurrent runs (defaults to optimizer.sweepWorkers)")

	return cmd
}

type serveOptions struct {
	serverConfig string
	address      string
}

func newServeCommand(g *globals) *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the allocation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(o.serverConfig)
			if err != nil {
				return err
			}
			if o.address != "" {
				cfg.Address = o.address
			}

			logger, err := initializeLogger(cfg.Logging, g.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			handler, closeStore, err := newServeHandler(cmd.Context(), g, cmd.Flags().Changed("config"), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			srv := &http.Server{
				Addr:              cfg.Address,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening",
					zap.String("op", "main"),
					zap.String("address", cfg.Address),
					zap.Int64("maxUploadSize", cfg.UploadSizeBytes()),
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down server", zap.String("op", "main"))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&o.serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&o.address, "address", "", "listen address override")

	return cmd
}

// newServeHandler builds the API handler. When the main configuration file
// exists, requests start from its optimizer settings and /api/ingest feeds
// its price store. An explicit --config that cannot be loaded is an error.
func newServeHandler(ctx context.Context, g *globals, explicit bool, cfg *server.Config, logger *zap.Logger) (http.Handler, func(), error) {
	m := metrics.New()
	opts := []server.Option{
		server.WithSweepWorkers(cfg.SweepWorkers),
		server.WithRequestTimeout(cfg.RequestTimeoutDuration()),
	}
	closeStore := func() {}

	if _, err := os.Stat(g.configPath); err == nil || explicit {
		conf, err := config.LoadConfiguration(g.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration at %s: %w", g.configPath, err)
		}
		if err := conf.Optimizer.Validate(); err != nil {
			return nil, nil, err
		}
		for _, warning := range conf.ValidateConfiguration() {
			logger.Warn("Configuration warning: "+warning,
				zap.String("op", "main"),
			)
		}

		store, err := prices.Open(ctx, logger, conf.Database)
		if err != nil {
			return nil, nil, err
		}
		runner, err := optimizer.NewRunner(logger, conf, store, m)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		closeStore = func() {
			_ = store.Close()
		}

		opts = append(opts,
			server.WithSettings(conf.Optimizer.Settings()),
			server.WithIngest(runner, prices.NewSource(logger, conf.Source, &http.Client{})),
		)
	} else {
		logger.Info("no main configuration found; requests start from built-in settings",
			zap.String("op", "main"),
			zap.String("config", g.configPath),
		)
	}

	return server.NewHandler(logger, cfg.UploadSizeBytes(), version, m, opts...), closeStore, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
