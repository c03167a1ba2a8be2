package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-instrument/codec"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send CLASS ACTION [PARAM...]",
		Short: "Issue one command and print the parsed answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			mgr, err := opts.openManager(ctx, cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			res, err := mgr.IssueCommand(ctx, args[0], args[1], parseParams(args[2:])...)
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res)

			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline, including recovery")

	return cmd
}

func printResult(w io.Writer, res codec.Result) {
	fmt.Fprintf(w, "raw: %q\n", res.Raw)
	if ints := res.Ints(); len(ints) > 0 {
		fmt.Fprintf(w, "fields: %v\n", ints)
	}
	if res.HasValue {
		fmt.Fprintf(w, "value: %g\n", res.Value)
	}
	for k, v := range res.Values {
		fmt.Fprintf(w, "%s: %v\n", k, v)
	}
}
