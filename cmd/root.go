package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "anonwall",
	Short: "Anonymous wall-comment bot for a VK community",
	Long:  "AnonWall lets users submit anonymous comments to whitelisted wall posts through a managed community account.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
