package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "covergen",
		Short: "Generate library cover art for Emby and Jellyfin servers",
		Long: `Covergen builds a cover image for every library on your Emby or Jellyfin
servers from the artwork of the items inside it, and uploads it as the
library's primary image.

Covers are only regenerated when the newest item of a library changed
since the last run.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default searches ~/.config/covergen and .)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror logs to stderr")

	cmd.AddCommand(
		newRunCmd(opts),
		newNotifyCmd(opts),
		newLibrariesCmd(opts),
		newFontsCmd(opts),
		newHistoryCmd(opts),
		newInitCmd(opts),
	)

	return cmd
}
