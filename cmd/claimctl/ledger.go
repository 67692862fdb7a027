package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the claim ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded claim lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := startContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			n, err := c.Ledger().Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})
	return cmd
}
