package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/flatjson/pkg/config"
	"github.com/ssargent/flatjson/pkg/di"
	"github.com/ssargent/flatjson/pkg/logger"
	"github.com/ssargent/flatjson/pkg/schema"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands.
func SetContainer(c *di.Container) {
	container = c
}

func getContainer() *di.Container {
	if container == nil {
		container = di.NewContainer()
	}
	return container
}

type appKey struct{}

// app is the per-invocation state built before any subcommand runs.
type app struct {
	cfg        *config.Config
	configPath string
}

// NewRootCmd builds the flatjson command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flatjson",
		Short: "Convert between JSON-like text and FlatBuffers messages",
		Long: `flatjson encodes human-readable text into FlatBuffers binary messages and
prints binary messages back as text, driven by a schema file.

It can also keep messages in an append-only log or a pebble-backed archive,
and serve the codec over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := logger.NewContextWithLogger(cmd.Context(), log)
			cmd.SetContext(context.WithValue(ctx, appKey{}, a))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	flags.String("schema", "", "Schema file, overrides the config")
	flags.StringP("data-dir", "d", "", "Data directory, overrides the config")
	flags.String("log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(),
		newSchemaCmd(),
		newEncodeCmd(),
		newDecodeCmd(),
		newLogCmd(),
		newArchiveCmd(),
		newServeCmd(),
	)
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command) (*app, *zap.Logger, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else if explicit && cmd.Name() != "init" && cmd.Name() != "serve" {
		return nil, nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if v, _ := flags.GetString("schema"); v != "" {
		cfg.Schema = v
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}

	log, err := logger.New(cmd.ErrOrStderr(), cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return &app{cfg: cfg, configPath: configPath}, log, nil
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func (a *app) loadSchema() (*schema.Schema, error) {
	if a.cfg.Schema == "" {
		return nil, errors.New("no schema configured: pass --schema or set schema in the config")
	}
	return schema.Load(a.cfg.Schema)
}

// table resolves a table name, falling back to the configured root type
// and then the schema's root_type.
func (a *app) table(s *schema.Schema, name string) (*schema.Object, error) {
	if name == "" {
		name = a.cfg.RootType
	}
	if name == "" {
		if s.Root == nil {
			return nil, errors.New("schema declares no root_type: pass --type")
		}
		return s.Root, nil
	}
	obj, ok := s.Object(name)
	if !ok || !obj.IsTable() {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return obj, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0600)
}
