package main

import (
	"io"

	"github.com/neovim/go-client/nvim/plugin"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/config"
	"go-live-docs/internal/host"
	"go-live-docs/internal/logging"
)

// Set up the connection to Neovim
// Take the plugin object we register commands
// Keep the connection alive and listen for request
func main() {
	plugin.Main(func(p *plugin.Plugin) error {
		// stdout carries msgpack-rpc; the logger writes to stderr.
		cfg, logger, err := setup("", nil)
		if err != nil {
			return err
		}
		return host.Register(p, cfg, logger)
	})
}

// setup loads the config and builds the plugin logger. A nil out logs to
// stderr.
func setup(path string, out io.Writer) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, out)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("registering handlers")
	return cfg, logger, nil
}
