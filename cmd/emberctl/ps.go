package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPSCmd(cfg *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "List the system's background tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tgt, err := resolveTarget(cfg)
			if err != nil {
				return err
			}
			c, err := dialConsole(tgt.addr, tgt.secret)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.run("ps")
			if err != nil {
				return err
			}
			renderPS(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// renderPS re-renders the device task listing, bolding the header row.
func renderPS(w io.Writer, out string) {
	lines := strings.Split(out, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "NAME") {
		fmt.Fprintln(w, strings.TrimSpace(out))
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	bold := color.New(color.Bold)
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if i == 0 {
			tbl.AddRow(bold.Sprint(fields[0]), bold.Sprint(fields[1]))
			continue
		}
		tbl.AddRow(fields[0], strings.Join(fields[1:], " "))
	}
	fmt.Fprintln(w, tbl)
}
