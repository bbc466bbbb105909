package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd(cfg *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Run one console command and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := resolveTarget(cfg)
			if err != nil {
				return err
			}
			c, err := dialConsole(tgt.addr, tgt.secret)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.run(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
}
