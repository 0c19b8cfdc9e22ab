package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "browbux",
	Short: "BrowseBux user economy service",
	Long: `BrowseBux economy service: passive accrual while a session is open,
daily task rewards, leveling and the Robux withdrawal workflow.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
