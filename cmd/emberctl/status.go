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

func newStatusCmd(cfg *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status as a table",
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

			out, err := c.run("status")
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), tgt.addr, out)
			return nil
		},
	}
}

// renderStatus turns the device's aligned key/value lines into a table,
// coloring the health fields.
func renderStatus(w io.Writer, addr, out string) {
	title := color.New(color.Bold, color.Underline)
	fmt.Fprintln(w, title.Sprint(addr))

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := fields[0]
		val := strings.Join(fields[1:], " ")
		tbl.AddRow(key, colorStatusValue(key, val))
	}
	fmt.Fprintln(w, tbl)
}

func colorStatusValue(key, val string) string {
	switch key {
	case "addr":
		if val == "down" {
			return color.New(color.FgRed).Sprint(val)
		}
		return color.New(color.FgGreen).Sprint(val)
	case "synced":
		if val == "yes" {
			return color.New(color.FgGreen).Sprint(val)
		}
		return color.New(color.FgYellow).Sprint(val)
	default:
		return val
	}
}
