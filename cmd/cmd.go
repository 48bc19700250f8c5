// Package cmd holds the offline subcommands that analyse or convert a
// directory of vMessage files without talking to an IMAP server.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhcgn/vmg-to-imap/config"
	"github.com/dhcgn/vmg-to-imap/filter"
	"github.com/dhcgn/vmg-to-imap/model"
	"github.com/dhcgn/vmg-to-imap/vmsg"
)

// Register adds all subcommands to root.
func Register(root *cobra.Command) {
	root.AddCommand(newVmgStatsCmd(), newExportCmd(), newThreadCmd())
}

// readDir parses every vMessage file below dir with the parsing flags of
// cmd. Filters are applied only when applyFilter is set.
func readDir(cmd *cobra.Command, dir string, applyFilter bool) ([]model.Message, []error, config.ParseConfig, error) {
	pc, err := config.LoadParseConfig(cmd)
	if err != nil {
		return nil, nil, config.ParseConfig{}, err
	}

	opts := vmsg.Options{
		Root:          dir,
		Extension:     pc.Extension,
		Workers:       pc.Workers,
		Location:      pc.Location,
		BodySeparator: pc.BodySeparator,
	}
	if applyFilter {
		opts.Filter = filterOptions(pc)
	}

	msgs, failures, err := vmsg.ReadAll(cmd.Context(), opts, slog.Default())
	if err != nil {
		return nil, nil, config.ParseConfig{}, fmt.Errorf("read %s: %w", dir, err)
	}
	return msgs, failures, pc, nil
}

func filterOptions(pc config.ParseConfig) filter.Options {
	return filter.Options{
		IncludeNumber: pc.IncludeNumber,
		IncludeBody:   pc.IncludeBody,
		ExcludeNumber: pc.ExcludeNumber,
		ExcludeBody:   pc.ExcludeBody,
	}
}
