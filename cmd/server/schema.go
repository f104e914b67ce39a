package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CREATE statements of every registered table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, t := range tables.Tables() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), t.CreateStatement(true)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
