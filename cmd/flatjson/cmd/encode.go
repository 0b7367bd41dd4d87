package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/flatjson/pkg/codec"
	"github.com/ssargent/flatjson/pkg/logger"
	"github.com/ssargent/flatjson/pkg/schema"
)

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text into a binary message",
		Long: `Encode reads a JSON-like text message and writes the FlatBuffers binary.

Examples:
  flatjson encode --schema monster.yaml -i orc.json -o orc.bin
  echo '{ "name": "orc" }' | flatjson encode -t Monster > orc.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			typeName, _ := cmd.Flags().GetString("type")
			obj, err := a.table(s, typeName)
			if err != nil {
				return err
			}

			input, _ := cmd.Flags().GetString("input")
			text, err := readInput(cmd, input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			buf, err := encodeText(cmd, a, obj, text)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			return writeOutput(cmd, output, buf)
		},
	}

	addTypeFlag(cmd)
	cmd.Flags().StringP("input", "i", "", "Input text file (default stdin)")
	cmd.Flags().StringP("output", "o", "", "Output binary file (default stdout)")
	addEncodeFlags(cmd)
	return cmd
}

func addTypeFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("type", "t", "", "Root table (default the configured or schema root_type)")
}

func addEncodeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("allow-comments", false, "Accept // and /* */ comments in the input")
	cmd.Flags().Bool("force-defaults", false, "Write fields even when they equal their default")
}

// encodeOptions applies encoder flags over the configured options.
func encodeOptions(cmd *cobra.Command, a *app) codec.EncodeOptions {
	opts := a.cfg.EncodeOptions()
	flags := cmd.Flags()
	if flags.Changed("allow-comments") {
		opts.AllowComments, _ = flags.GetBool("allow-comments")
	}
	if flags.Changed("force-defaults") {
		opts.ForceDefaults, _ = flags.GetBool("force-defaults")
	}
	return opts
}

func encodeText(cmd *cobra.Command, a *app, obj *schema.Object, text []byte) ([]byte, error) {
	buf, err := codec.Encode(string(text), obj, encodeOptions(cmd, a))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", obj.Name, err)
	}
	logger.FromContext(cmd.Context()).Debug("encoded message",
		zap.String("type", obj.Name),
		zap.String("size", humanize.Bytes(uint64(len(buf)))),
	)
	return buf, nil
}
