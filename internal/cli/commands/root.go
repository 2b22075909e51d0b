// Package commands implements the cropyield command-line interface.
package commands

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/cropyield/config"
	"github.com/YuminosukeSato/cropyield/pkg/log"
)

const version = "0.1.0"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string

	cfg       config.Config
	logCloser io.Closer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	o := &globalOptions{}
	root := &cobra.Command{
		Use:     "cropyield",
		Short:   "Train and query crop-yield regression models",
		Version: version,
		Long: `cropyield trains a random-forest model that predicts crop yield (t/ha) from
mean temperature, annual precipitation, fertilizer use and soil type, and
serves predictions from saved models.`,
		Example: `  # Generate a synthetic dataset
  $ cropyield generate --n 1000 --seed 42 --out crops.csv

  # Train on it, store the run and save the model
  $ cropyield train --data crops.csv --db runs.db --model model.gob

  # Predict one field
  $ cropyield predict --model model.gob --temperature 28 --precipitation 1500 --fertilizer 180 --soil Franco`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if o.logCloser != nil {
				return o.logCloser.Close()
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newGenerateCommand(o))
	root.AddCommand(newTrainCommand(o))
	root.AddCommand(newPredictCommand(o))
	root.AddCommand(newRunsCommand(o))
	return root
}

// setup loads the configuration and installs the process-wide logger.
func (o *globalOptions) setup() error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	provider, closer, err := cfg.Log.NewProvider()
	if err != nil {
		return err
	}
	log.SetProvider(provider)
	o.cfg = cfg
	o.logCloser = closer
	log.GetLoggerWithName("cli").Debug("Configuration loaded", log.ConfigPathKey, o.configPath)
	return nil
}

// Execute runs the CLI with Ctrl-C cancelling the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
