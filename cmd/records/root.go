package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	records "github.com/goliatone/go-records"
	"github.com/goliatone/go-records/internal/config"
	"github.com/goliatone/go-records/pkg/activity"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	verbose      bool
	configPath   string
	input        string
	dataPath     string
	optionsField string
	idField      string
	shopify      bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "records",
		Short: "Project embedded option pairs into top-level record fields",
		Long: `records reads a JSON array of records, each carrying an ordered list of
name/value option pairs, and writes the records with every option promoted to
a top-level field keyed by its lower-cased name.

Configuration is read from --config (YAML) and RECORDS_* environment
variables; flags win over both.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.input, "input", "i", "-", "Input JSON file (- for stdin)")
	flags.StringVar(&a.dataPath, "data-path", "", "Dotted path to the record array inside the input document")
	flags.StringVar(&a.optionsField, "options-field", "", "Field holding the option pairs (default options)")
	flags.StringVar(&a.idField, "id-field", "", "Field identifying records in errors (default id)")
	flags.BoolVar(&a.shopify, "shopify", false, "Read storefront variants (shopifyId / selectedOptions)")

	rootCmd.AddCommand(newProjectCmd(a))
	rootCmd.AddCommand(newDescribeCmd(a))
	rootCmd.AddCommand(newTraceCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.shopify {
		cfg.IDField = records.ShopifyIDField
		cfg.OptionsField = records.ShopifyOptionsField
	}
	if a.optionsField != "" {
		cfg.OptionsField = a.optionsField
	}
	if a.idField != "" {
		cfg.IDField = a.idField
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	zapConfig := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}
	if a.verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.logger, err = zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// projector builds a projector from the loaded configuration, logging every
// projection call and its activity events.
func (a *app) projector() (*records.Projector, error) {
	opts, err := a.cfg.ProjectorOptions(
		records.WithProjectionLogger(records.NewZapLogger(a.logger)),
		records.WithActivityHooks(activity.Hooks{logHook(a.logger)}),
	)
	if err != nil {
		return nil, err
	}
	return records.NewProjector(opts...), nil
}

func logHook(logger *zap.Logger) activity.HookFunc {
	return func(_ context.Context, event activity.Event) error {
		logger.Debug("activity",
			zap.String("verb", event.Verb),
			zap.String("batch", event.ObjectID),
			zap.String("channel", event.Channel),
			zap.Any("metadata", event.Metadata),
		)
		return nil
	}
}
