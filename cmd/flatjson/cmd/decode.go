package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/flatjson/pkg/codec"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Print a binary message as text",
		Long: `Decode reads a FlatBuffers binary message and prints it as JSON-like text.

Examples:
  flatjson decode --schema monster.yaml -i orc.bin
  flatjson decode -t Monster --multi-line --max-vector-size 10 < orc.bin`,
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
			buf, err := readInput(cmd, input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := codec.WriteText(out, buf, obj, printOptions(cmd, a)); err != nil {
				return fmt.Errorf("decode %s: %w", obj.Name, err)
			}
			_, err = io.WriteString(out, "\n")
			return err
		},
	}

	addTypeFlag(cmd)
	cmd.Flags().StringP("input", "i", "", "Input binary file (default stdin)")
	addPrintFlags(cmd)
	return cmd
}

func addPrintFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("multi-line", false, "Print one field per line")
	cmd.Flags().Int("max-vector-size", 0, "Elide vectors longer than this (0 prints everything)")
	cmd.Flags().Int("float-precision", 0, "Significant digits for floats (0 is shortest exact)")
}

// printOptions applies printer flags over the configured options.
func printOptions(cmd *cobra.Command, a *app) codec.PrintOptions {
	opts := a.cfg.PrintOptions()
	flags := cmd.Flags()
	if flags.Changed("multi-line") {
		opts.MultiLine, _ = flags.GetBool("multi-line")
	}
	if flags.Changed("max-vector-size") {
		opts.MaxVectorSize, _ = flags.GetInt("max-vector-size")
	}
	if flags.Changed("float-precision") {
		opts.FloatPrecision, _ = flags.GetInt("float-precision")
	}
	return opts
}
