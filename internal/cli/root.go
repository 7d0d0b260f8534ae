// Package cli implements the gamify command-line interface using Cobra.
// Every command except serve opens the local store directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "gamify",
	Short: "Points, badges, achievements and leaderboards for club members",
	Long: `gamify is a gamification engine for campus club platforms.
It turns member activity into points, levels, streaks, badges,
achievement progress and ranked leaderboards.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $GAMIFY_HOME/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
