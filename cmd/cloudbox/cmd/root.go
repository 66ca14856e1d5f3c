package cmd

import (
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cloudbox",
	Short: "cloudbox is a small authenticated file store",
	Long: `A self-hosted file server: sign in with a configured account, then upload,
list and download files kept in a single directory.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	memguard.Purge()
	if err != nil {
		os.Exit(1)
	}
}
