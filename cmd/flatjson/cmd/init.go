package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/flatjson/pkg/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config with a generated API key",
		Long: `Init writes a config file with a freshly generated API key and creates the
data directory.

Examples:
  flatjson init --schema ./monster.yaml
  flatjson init --config ./flatjson.yaml --data-dir ./data --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			force, _ := cmd.Flags().GetBool("force")
			out := cmd.OutOrStdout()

			if config.ConfigExists(a.configPath) && !force {
				fmt.Fprintf(out, "Config already exists at %s. Use --force to overwrite.\n", a.configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(a.configPath, a.cfg.DataDir, a.cfg.Schema)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			fmt.Fprintf(out, "Wrote config to %s\n", a.configPath)
			fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
			fmt.Fprintf(out, "API key: %s\n", cfg.APIKey)
			fmt.Fprintf(out, "\nStart the server with:\n  flatjson serve --config %s\n", a.configPath)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing config")
	return cmd
}
