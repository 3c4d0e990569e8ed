package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	envFile     string
	logLevelInt int
	logLevel    zerolog.Level = zerolog.InfoLevel
	// The root command of our program
	rootCmd = &cobra.Command{
		Use:   "grwebhook",
		Short: "Receives sale webhooks, records them and forwards them to analytics.",
		Long: `Authenticates sale webhooks sent as form-encoded POSTs, normalizes them into sale records,
		upserts them into the configured store and reports each purchase to the analytics collector.`,
	}
)

// Go, go, go
func main() {
	rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Bind our args to the command
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "The env file to read.")
	rootCmd.PersistentFlags().IntVar(&logLevelInt, "log", 1, "The logging level to use.")

	rootCmd.AddCommand(serveCmd, lambdaCmd, localCmd)
}

func initConfig() {
	setLogLevel()

	err := godotenv.Load(envFile)
	if err != nil {
		log.Info().Err(err).Msg("failed to load env file")
	}
}

func setLogLevel() {
	logLevel = zerolog.Level(logLevelInt)
}
