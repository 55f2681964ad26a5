package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/price-allocation/internal/config"
	"github.com/iwvelando/price-allocation/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// globals carries the persistent flags and the state loaded from them.
type globals struct {
	configPath string
	logLevel   string

	conf   *config.Configuration
	logger *zap.Logger
}

// setup loads the configuration file and builds the logger.
func (g *globals) setup() error {
	conf, err := config.LoadConfiguration(g.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", g.configPath, err)
	}

	logger, err := initializeLogger(conf.Logging, g.logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	g.conf = conf
	g.logger = logger
	return nil
}

func (g *globals) sync() {
	if g.logger != nil {
		_ = g.logger.Sync()
	}
}

// newRootCommand creates the top-level price-allocation command.
func newRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "price-allocation",
		Short:         "Allocate a fixed total across hourly price slots",
		Long:          "Spread a fixed total across hourly price slots, trading total cost against a smooth allocation profile.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", constants.DefaultConfigFile, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newIngestCommand(g))
	rootCmd.AddCommand(newOptimizeCommand(g))
	rootCmd.AddCommand(newSweepCommand(g))
	rootCmd.AddCommand(newServeCommand(g))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "{\"op\": \"main\", \"level\": \"fatal\", \"error\": %q}\n", err.Error())
		stop()
		os.Exit(1)
	}
}
