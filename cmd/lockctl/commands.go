package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all locks and their current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			list, err := c.listLocks(ctx)
			if err != nil {
				return err
			}
			return printLocks(cmd.OutOrStdout(), list.Locks)
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <lock-id>",
		Short: "Show the state of one lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			view, err := c.getLock(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printLocks(cmd.OutOrStdout(), []lockView{*view})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw API response")
	return cmd
}

// newCommandCmd builds one of the lock/unlock/open/sync subcommands, which
// differ only in the endpoint they post to.
func newCommandCmd(opts *options, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command + " <lock-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			res, err := c.command(ctx, args[0], command)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", res.Command, res.DeviceID, res.Status)
			return nil
		},
	}
}

func printLocks(w io.Writer, locks []lockView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAVAILABLE\tSTATE\tLOCKED\tBATTERY\tMONITOR\tREASON")
	for _, l := range locks {
		state, locked, battery := "-", "-", "-"
		if p := l.Projection; p != nil {
			state = p.State.String()
			locked = fmt.Sprintf("%t", p.Locked)
			if p.BatteryLevel != nil {
				battery = fmt.Sprintf("%d%%", *p.BatteryLevel)
			}
		}
		reason := l.ReasonMessage
		if reason == "" {
			reason = l.ReasonKey
		}
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Name, l.Available, state, locked, battery, l.Monitor.Phase, reason)
	}
	return tw.Flush()
}
