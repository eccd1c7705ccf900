package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/willibrandon/lofid/internal/daemon"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends, their installed status, and capabilities",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(daemon.DescribeBackends(cfg))
		},
	}
}
