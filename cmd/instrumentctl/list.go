package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [class]",
		Short: "List catalog classes, or the commands of one class",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.catalog()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 0 {
				fmt.Fprintln(w, "CLASS\tFORMAT\tACTIONS")
				for _, name := range cat.Names() {
					cls, err := cat.Class(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%d\n", name, cls.Format(), len(cls.Actions()))
				}

				return nil
			}

			cls, err := cat.Class(args[0])
			if err != nil {
				return err
			}

			def := cls.Def()
			fmt.Fprintln(w, "ACTION\tTEMPLATE\tTIMEOUT")
			for _, action := range cls.Actions() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", action, def.Commands[action].Template, cls.Timeout(action))
			}

			return nil
		},
	}
}
