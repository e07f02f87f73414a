package cmd

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "mpgserve",
		Short:         "Predict fuel efficiency (MPG) from vehicle weight",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newPredictCmd(&configPath),
		newModelCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
