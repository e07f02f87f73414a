package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"mpgserve/config"
	"mpgserve/ml"
)

func newPredictCmd(configPath *string) *cobra.Command {
	var (
		raw       bool
		modelPath string
	)

	cmd := &cobra.Command{
		Use:   "predict <weight>",
		Short: "Predict MPG for one weight and print the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if modelPath != "" {
				cfg.Model.Path = modelPath
			}

			store := ml.NewModelStore()
			if _, err := loadModel(store, cfg.Model.Path, cfg.Model.Name); err != nil {
				return err
			}
			service := ml.NewPredictionService(store, ml.NewMessages(cfg.App.Language))

			var out interface{}
			if raw {
				out, err = service.PredictRaw(args[0])
			} else {
				out, err = service.Predict(args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "use the API contract: no upper bound, no interpretation")
	cmd.Flags().StringVar(&modelPath, "model", "", "artifact or registry to load (overrides model.path)")
	return cmd
}
