// nexoctl is the Nexo server administration CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "nexoctl",
	Short:         "Administer a Nexo server installation",
	Long:          "Manage user accounts and the analysis cache of a Nexo deployment.\nConfiguration is read from the environment, the same way the server reads it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
