// Command nmspgate serves legacy NMSP speech uploads.
//
// Usage:
//
//	nmspgate serve [--config path]
//	nmspgate lang <code>...
//	nmspgate version
//
// Without a config file every setting comes from the environment and the
// built-in defaults.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "nmspgate",
	Short:         "Gateway between NMSP speech clients and a cloud recognizer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, langCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nmspgate:", err)
		os.Exit(1)
	}
}
