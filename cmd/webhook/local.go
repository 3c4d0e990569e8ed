package main

import (
	"github.com/grwebhook/grwebhook/internal/webhook"
	"github.com/spf13/cobra"
)

var path string

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "Replay raw webhook bodies from local files and directories",
	Run: func(cmd *cobra.Command, args []string) {
		webhook.Local(path, logLevel)
	},
}

func init() {
	localCmd.Flags().StringVarP(&path, "path", "p", ".", "The path to read from. Can be a file or a directory.")
}
