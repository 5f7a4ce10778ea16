package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/nmspgate/pkg/lang"
)

var langCmd = &cobra.Command{
	Use:   "lang <code>...",
	Short: "Show how device language codes are routed",
	Long: `Print the recognition language and model chosen for each device
language code, exactly as an upload from that device would be routed.

Examples:
  nmspgate lang en-us cmn-hans-cn eng-gbr`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tLANGUAGE\tMODEL")
		for _, code := range args {
			res := lang.Resolve(code)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", code, res.Language, res.Model)
		}
		return tw.Flush()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "nmspgate", version)
	},
}
