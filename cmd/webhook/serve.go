package main

import (
	"github.com/grwebhook/grwebhook/internal/webhook"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		webhook.Server(logLevel)
	},
}
