package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/flatjson/pkg/codec"
	"github.com/ssargent/flatjson/pkg/logger"
	"github.com/ssargent/flatjson/pkg/schema"
	"github.com/ssargent/flatjson/pkg/store"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append messages to and read the message log",
	}
	cmd.AddCommand(newLogAppendCmd(), newLogCatCmd(), newLogStatsCmd())
	return cmd
}

// openLog opens the message log in the data directory, reporting any
// damaged tail it had to drop.
func openLog(cmd *cobra.Command, a *app) (*store.MessageLog, error) {
	ml, recovery, err := store.OpenMessageLog(store.MessageLogConfig{DataDir: a.cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("failed to open message log: %w", err)
	}
	if recovery.RecordsTruncated > 0 {
		logger.FromContext(cmd.Context()).Warn("truncated damaged message log tail",
			zap.Int64("records_kept", recovery.RecordsValidated),
			zap.String("bytes_dropped", humanize.Bytes(uint64(recovery.FileSizeBefore-recovery.FileSizeAfter))),
			zap.Duration("recovery_time", recovery.RecoveryTime),
		)
	}
	return ml, nil
}

func newLogAppendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Encode a text message and append it to the log",
		Long: `Append encodes a text message and appends it to the message log.

Example:
  flatjson log append -t Monster -i orc.json`,
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

			ml, err := openLog(cmd, a)
			if err != nil {
				return err
			}
			defer ml.Close()

			offset, err := ml.Append(obj.Name, buf)
			if err != nil {
				return fmt.Errorf("failed to append message: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appended %s at offset %d (%s)\n", obj.Name, offset, humanize.Bytes(uint64(len(buf))))
			return nil
		},
	}

	addTypeFlag(cmd)
	cmd.Flags().StringP("input", "i", "", "Input text file (default stdin)")
	addEncodeFlags(cmd)
	return cmd
}

func newLogCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Print every message in the log",
		Long: `Cat prints each logged message as text, preceded by a header line with its
offset, type and timestamp.

Example:
  flatjson log cat --type Monster --multi-line`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			s, err := a.loadSchema()
			if err != nil {
				return err
			}
			filter, _ := cmd.Flags().GetString("type")
			opts := printOptions(cmd, a)

			ml, err := openLog(cmd, a)
			if err != nil {
				return err
			}
			defer ml.Close()

			it, err := ml.Iterator()
			if err != nil {
				return err
			}
			defer it.Close()

			out := cmd.OutOrStdout()
			for it.Next() {
				record := it.Record()
				typeName := string(record.TypeName)
				if filter != "" && typeName != filter {
					continue
				}
				if err := printRecord(out, s, it.Offset(), record, opts); err != nil {
					return err
				}
			}
			return it.Err()
		},
	}

	cmd.Flags().StringP("type", "t", "", "Only print messages of this table")
	addPrintFlags(cmd)
	return cmd
}

// printRecord writes a header line and the record's text. Records whose
// type is not in the schema are summarized instead.
func printRecord(out io.Writer, s *schema.Schema, offset int64, record *codec.Record, opts codec.PrintOptions) error {
	typeName := string(record.TypeName)
	fmt.Fprintf(out, "# offset=%d type=%s time=%s\n", offset, typeName, record.Time().Format(time.RFC3339Nano))

	obj, ok := s.Object(typeName)
	if !ok || !obj.IsTable() {
		_, err := fmt.Fprintf(out, "<%s message not in schema, %s>\n", typeName, humanize.Bytes(uint64(len(record.Message))))
		return err
	}
	if err := codec.WriteText(out, record.Message, obj, opts); err != nil {
		return fmt.Errorf("message at offset %d: %w", offset, err)
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// printRecordText prints a single record's message without a header.
func printRecordText(cmd *cobra.Command, s *schema.Schema, record *codec.Record, opts codec.PrintOptions) error {
	obj, ok := s.Object(string(record.TypeName))
	if !ok || !obj.IsTable() {
		return fmt.Errorf("message type %q is not a table in the schema", record.TypeName)
	}
	out := cmd.OutOrStdout()
	if err := codec.WriteText(out, record.Message, obj, opts); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}

func newLogStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message counts and log size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ml, err := openLog(cmd, a)
			if err != nil {
				return err
			}
			defer ml.Close()

			stats := ml.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Log: %s\n", ml.Path())
			fmt.Fprintf(out, "Records: %d\n", stats.Records)
			fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(stats.DataSize)))

			types := make([]string, 0, len(stats.Types))
			for name := range stats.Types {
				types = append(types, name)
			}
			sort.Strings(types)
			for _, name := range types {
				fmt.Fprintf(out, "  %s: %d\n", name, stats.Types[name])
			}
			return nil
		},
	}
}
