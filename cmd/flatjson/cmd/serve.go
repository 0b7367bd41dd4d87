package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/flatjson/pkg/api"
	"github.com/ssargent/flatjson/pkg/config"
	"github.com/ssargent/flatjson/pkg/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve exposes encode, decode and the message archive over HTTP.

If no config file exists yet, one is created with a generated API key, the
same as running 'flatjson init' first.

Examples:
  flatjson serve --schema monster.yaml
  flatjson serve --config ./flatjson.yaml --port 9000 --bind 0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			if !config.ConfigExists(a.configPath) {
				cfg, err := config.BootstrapConfig(a.configPath, a.cfg.DataDir, a.cfg.Schema)
				if err != nil {
					return err
				}
				cfg.Logging = a.cfg.Logging
				a.cfg = cfg
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote new config to %s\nAPI key: %s\n", a.configPath, cfg.APIKey)
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				a.cfg.Port, _ = flags.GetInt("port")
			}
			if flags.Changed("bind") {
				a.cfg.Bind, _ = flags.GetString("bind")
			}
			if flags.Changed("api-key") {
				a.cfg.APIKey, _ = flags.GetString("api-key")
			}
			if a.cfg.APIKey == "" || a.cfg.APIKey == "auto" {
				return errors.New("no API key configured: run 'flatjson init' or pass --api-key")
			}

			s, err := a.loadSchema()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(a.cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			archive, err := openArchive(a)
			if err != nil {
				return err
			}
			defer archive.Close()

			serverConfig := api.ServerConfig{
				Port:          a.cfg.Port,
				Bind:          a.cfg.Bind,
				APIKey:        a.cfg.APIKey,
				EncodeOptions: a.cfg.EncodeOptions(),
				PrintOptions:  a.cfg.PrintOptions(),
			}
			log := logger.FromContext(cmd.Context())
			server := api.NewServer(s, archive, serverConfig, api.NewMetrics(api.NewRegistry()), log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("serving", zap.String("schema", a.cfg.Schema), zap.String("data_dir", a.cfg.DataDir))
			starter := getContainer().GetServerFactory().CreateServerStarter()
			return starter.StartServer(ctx, server, serverConfig)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	cmd.Flags().String("api-key", "", "API key clients must send in X-API-Key")
	return cmd
}
