package main

import (
	"os"

	"github.com/md-rashed-zaman/appointly/libs/config"
	"github.com/spf13/cobra"
)

func main() {
	var envFile string
	root := &cobra.Command{
		Use:           "appointment-service",
		Short:         "Appointment scheduling and status workflow service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file loaded before reading configuration")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
