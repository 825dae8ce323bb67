package main

import (
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand talking to the server.
type globalOptions struct {
	apiURL string
	token  string
	board  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "linkctl",
		Short: "Manage BBS file download links.",
		Long: `linkctl issues, inspects and revokes time-limited download links on a
running filelinks server, and encodes or decodes link tokens offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("FILELINKS_API", "http://localhost:8080"),
		"base URL of the filelinks server")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ADMIN_API_TOKEN"),
		"admin API bearer token")
	rootCmd.PersistentFlags().StringVar(&opts.board, "board", os.Getenv("BOARD_NAME"),
		"board name the token alphabet is derived from")

	rootCmd.AddCommand(newTokenCmd(opts))
	rootCmd.AddCommand(newLinkCmd(opts))
	rootCmd.AddCommand(newSessionCmd(opts))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
