package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/vmg-to-imap/config"
	"github.com/dhcgn/vmg-to-imap/conversation"
)

func newThreadCmd() *cobra.Command {
	var number string

	c := &cobra.Command{
		Use:   "thread [directory]",
		Short: "Print the conversation with one number, or list all numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, _, pc, err := readDir(cmd, args[0], true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !cmd.Flags().Changed("number") {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMBER\tINBOX\tOUTBOUND\tFIRST\tLAST")
				for _, th := range conversation.Summarize(msgs) {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", displayNumber(th.Number), th.Inbox, th.Outbound, displayTime(th.First, pc.Location), displayTime(th.Last, pc.Location))
				}
				return tw.Flush()
			}

			thread := conversation.ForNumber(msgs, number)
			if len(thread) == 0 {
				return fmt.Errorf("no messages for number %q", number)
			}
			for _, msg := range thread {
				fmt.Fprintln(out, conversation.FormatLine(msg, pc.Location))
			}
			return nil
		},
	}

	config.RegisterParseFlags(c)
	c.Flags().StringVarP(&number, "number", "n", "", "Phone number to print (empty string selects records without number)")
	return c
}

func displayNumber(number string) string {
	if number == "" {
		return "(none)"
	}
	return number
}

func displayTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return conversation.FormatTime(t, loc)
}
