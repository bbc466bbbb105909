package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ember/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "emberctl "+buildinfo.Line())
			return err
		},
	}
}
