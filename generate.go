package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/refinery/internal/domain"
)

var generateCmd = &cobra.Command{
	Use:   "generate <input>",
	Short: "Run one refinement session and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

var (
	generateModel    string
	generateMaxTurns int
	generateVerbose  bool
	generateOutput   string
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateModel, "model", "m", "", "Model to use (defaults to LLM_MODEL)")
	generateCmd.Flags().IntVarP(&generateMaxTurns, "max-turns", "t", 0, "Maximum turns, 1-10 (defaults to DEFAULT_MAX_TURNS)")
	generateCmd.Flags().BoolVarP(&generateVerbose, "verbose", "v", false, "Show every turn")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Also write the result to a .txt or .json file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// One in-process session needs one slot.
	cfg.MaxConcurrent = 1

	ctx := context.Background()
	svc, err := buildService(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	req := domain.GenerateRequest{
		Input:   args[0],
		Model:   generateModel,
		Verbose: true,
	}
	if cmd.Flags().Changed("max-turns") {
		req.MaxTurns = &generateMaxTurns
	}

	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("Refining %q...", req.Input)))
	result, err := svc.Generate(ctx, "", req)
	if err != nil {
		return &backendError{err: err, baseURL: cfg.LLMBaseURL}
	}
	if result.Queued != nil {
		return fmt.Errorf("no generation slot available: %s", result.Queued.Message)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderResult(result.Response, generateVerbose))

	if generateOutput != "" {
		if err := writeOutput(generateOutput, result.Response); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Saved to "+generateOutput))
	}
	return nil
}
