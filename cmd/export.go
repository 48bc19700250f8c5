package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhcgn/vmg-to-imap/config"
	"github.com/dhcgn/vmg-to-imap/export"
)

func newExportCmd() *cobra.Command {
	var (
		format      string
		output      string
		selfAddress string
	)

	formats := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		formats = append(formats, string(f))
	}

	c := &cobra.Command{
		Use:   "export [directory]",
		Short: "Convert a directory of .vmg files into an mbox, SQLite, XLSX or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = "sms" + f.Extension()
			}

			msgs, failures, _, err := readDir(cmd, args[0], true)
			if err != nil {
				return err
			}
			for _, failure := range failures {
				slog.Warn("skipping unreadable file", "err", failure)
			}

			if err := export.WriteFile(f, path, msgs, export.Options{SelfAddress: selfAddress}); err != nil {
				return fmt.Errorf("export %s: %w", f, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s (%d files failed)\n", len(msgs), path, len(failures))
			return nil
		},
	}

	config.RegisterParseFlags(c)
	c.Flags().StringVarP(&format, "format", "f", string(export.FormatMbox), "Output format: "+strings.Join(formats, ", "))
	c.Flags().StringVarP(&output, "output", "o", "", "Output file (default: sms.<format>)")
	c.Flags().StringVar(&selfAddress, "self-address", "me@sms.invalid", "Address used for the phone owner in mbox From/To headers")
	return c
}
