package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	rootCmd := &cobra.Command{
		Use:   "sessionkit",
		Short: "Wallet session management for the Deorganized API",
		Long: `sessionkit manages a wallet-backed Deorganized session from the
command line: connect a Stacks wallet, complete account setup, keep the
access token fresh, and inspect the signed-in account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		connectCmd(),
		setupCmd(),
		whoamiCmd(),
		tokenCmd(),
		logoutCmd(),
		runCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
