package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Volunteer food rescue delivery coordinator",
	Long: `Coordinator runs the food rescue scheduling server and talks to it.

The server tracks volunteers, partner organizations, delivery events and
route assignments, and exposes a REST API plus an LLM chat assistant.
All other subcommands are thin clients of a running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(volunteersCmd)
	rootCmd.AddCommand(organizationsCmd)
	rootCmd.AddCommand(deliveriesCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
