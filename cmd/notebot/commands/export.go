package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/dailynote"
)

// errNeedsDurableBackend is returned by offline commands on the memory
// backend, which has nothing to read outside the running bot.
var errNeedsDurableBackend = errors.New("this command needs the file or sqlite backend (notes.backend)")

// newExportCmd creates `notebot export [date]`.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [YYYY-MM-DD]",
		Short: "Write a day's note to a file or stdout",
		Long: `Exports one daily note from the configured file or sqlite backend.
The date defaults to today at the configured UTC offset.

Examples:
  notebot export
  notebot export 2025-07-25 -o 2025-07-25.md
  notebot export 2025-07-25 -o -`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExport,
	}
	cmd.Flags().StringP("output", "o", "", "output file, - for stdout (default: <date><extension>)")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Notes.Backend == config.BackendMemory {
		return errNeedsDurableBackend
	}
	logger := newLogger(cmd, cfg, os.Stderr)
	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	_, exporter, err := newEngine(cfg, backend, logger)
	if err != nil {
		return err
	}

	var date string
	if len(args) == 1 {
		date = args[0]
	}
	art, err := exporter.Export(cmd.Context(), date)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = art.Filename
	}
	if output == "-" {
		_, err := cmd.OutOrStdout().Write(art.Data)
		return err
	}
	if err := os.WriteFile(output, art.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d entries, %d bytes)\n", output, art.Entries, art.Size())
	return nil
}

// newListCmd creates `notebot list`.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored daily notes, newest first",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Notes.Backend == config.BackendMemory {
		return errNeedsDurableBackend
	}
	logger := newLogger(cmd, cfg, os.Stderr)
	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	_, exporter, err := newEngine(cfg, backend, logger)
	if err != nil {
		return err
	}

	infos, err := exporter.List(cmd.Context())
	if err != nil {
		return err
	}
	return writeListing(cmd.OutOrStdout(), infos)
}

func writeListing(w io.Writer, infos []dailynote.DocumentInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No notes stored yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tENTRIES\tSIZE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", info.Date, info.Entries, info.Size)
	}
	return tw.Flush()
}
