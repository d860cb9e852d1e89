package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-live-docs/internal/app"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve a markdown file and re-render it on change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		if len(args) == 1 {
			cfg.Content.Path = args[0]
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if cfg.Content.Path == "" {
			return errors.New("no markdown file given: pass one or set content.path")
		}
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid config")
		}

		docs, err := app.NewLiveDocs(cfg, logger)
		if err != nil {
			return errors.Wrap(err, "creating viewer")
		}
		if err := docs.Start(); err != nil {
			return err
		}
		cmd.Printf("viewer: %s\n", docs.URL())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		logger.Info("shutting down")
		return docs.Stop()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
