package main

import (
	"github.com/grwebhook/grwebhook/internal/webhook"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve the webhook behind API Gateway on AWS Lambda",
	Run: func(cmd *cobra.Command, args []string) {
		webhook.Lambda(logLevel)
	},
}
