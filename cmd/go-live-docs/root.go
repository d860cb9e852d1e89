package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-live-docs/internal/config"
	"go-live-docs/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "go-live-docs",
	Short: "Live markdown documentation viewer",
	Long: `go-live-docs serves a markdown document inside an embedded frame next to a
table of contents that follows the reader's scroll position. The document is
re-rendered in every open viewer whenever the file changes.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "go-live-docs.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the config file and environment, then builds the logger.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
