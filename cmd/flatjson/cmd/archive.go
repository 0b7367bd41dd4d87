package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/flatjson/pkg/storage"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store and retrieve messages by id",
	}
	cmd.AddCommand(newArchivePutCmd(), newArchiveGetCmd(), newArchiveListCmd(), newArchiveDeleteCmd())
	return cmd
}

func archivePath(a *app) string {
	return filepath.Join(a.cfg.DataDir, "archive")
}

func openArchive(a *app) (*storage.Archive, error) {
	archive, err := getContainer().GetArchiveFactory().OpenArchive(archivePath(a))
	if err != nil {
		return nil, err
	}
	return archive, nil
}

func newArchivePutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Encode a text message and archive it",
		Long: `Put encodes a text message, stores it in the archive and prints its id.

Example:
  flatjson archive put -t Monster -i orc.json`,
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

			archive, err := openArchive(a)
			if err != nil {
				return err
			}
			defer archive.Close()

			id, err := archive.Put(obj.Name, buf)
			if err != nil {
				return fmt.Errorf("failed to archive message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return nil
		},
	}

	addTypeFlag(cmd)
	cmd.Flags().StringP("input", "i", "", "Input text file (default stdin)")
	addEncodeFlags(cmd)
	return cmd
}

func newArchiveGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print an archived message as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id %q: %w", args[0], err)
			}
			s, err := a.loadSchema()
			if err != nil {
				return err
			}

			archive, err := openArchive(a)
			if err != nil {
				return err
			}
			defer archive.Close()

			record, err := archive.Get(id)
			if err != nil {
				return fmt.Errorf("message %s: %w", id, err)
			}
			return printRecordText(cmd, s, record, printOptions(cmd, a))
		},
	}

	addPrintFlags(cmd)
	return cmd
}

func newArchiveListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived messages, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			archive, err := openArchive(a)
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.List(limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tARCHIVED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.ID,
					e.Record.TypeName,
					humanize.Bytes(uint64(len(e.Record.Message))),
					humanize.Time(e.ID.Time()),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 0, "Maximum number of messages to list (0 lists all)")
	return cmd
}

func newArchiveDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an archived message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id %q: %w", args[0], err)
			}

			archive, err := openArchive(a)
			if err != nil {
				return err
			}
			defer archive.Close()

			if err := archive.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
}
