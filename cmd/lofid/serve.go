package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/willibrandon/lofid/internal/config"
	"github.com/willibrandon/lofid/internal/daemon"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the line-framed generation daemon over stdin/stdout",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if _, err := config.NormalizeBackend(cfg.Daemon.Backend); err != nil {
				return err
			}

			slog.Info("lofid: daemon starting",
				"backend", cfg.Daemon.Backend,
				"cache_path", cfg.Daemon.CachePath)

			srv := daemon.NewServer(cfg, os.Stdin, os.Stdout)

			return srv.Run()
		},
	}

	defaults := config.DefaultConfig()
	config.RegisterFlags(cmd.Flags(), defaults)

	return cmd
}
