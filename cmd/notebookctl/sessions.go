package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd(open backendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage server-side sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(b backend) error {
				n, err := b.Sessions().DeleteExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired sessions\n", n)
				return nil
			})
		},
	})

	return cmd
}
