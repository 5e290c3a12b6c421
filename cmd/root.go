// Package cmd implements the presence command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "presence",
	Short: "Face-recognition attendance with a blink liveness check",
	Long: `Presence takes classroom attendance from a camera feed: a session
starts with a blink liveness challenge, then matches the faces it sees
against the enrolled gallery and records each identity at most once per
subject and day.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
