package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the backend serves",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := buildService(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	models, err := svc.ListModels(ctx)
	if err != nil {
		return &backendError{err: err, baseURL: cfg.LLMBaseURL}
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderModels(models))
	return nil
}
