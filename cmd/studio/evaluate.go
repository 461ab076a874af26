package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/evaluation"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/similarity"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <file>",
	Short: "Score a cover letter offline",
	Long:  "Score a cover letter text file for length, structure and keyword coverage without contacting the gateway.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <file>",
	Short: "Report repeated sentences in a cover letter",
	Args:  cobra.ExactArgs(1),
	RunE:  runDuplicates,
}

var (
	evaluateTags      []string
	duplicatesMinimum float64
)

func init() {
	evaluateCmd.Flags().StringSliceVar(&evaluateTags, "tags", nil, "Job tags to count as keywords (comma separated)")
	duplicatesCmd.Flags().Float64Var(&duplicatesMinimum, "threshold", similarity.DefaultThreshold, "Minimum token overlap for two sentences to match")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(duplicatesCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	text, err := readText(args[0])
	if err != nil {
		return err
	}
	scorer := evaluation.NewScorer(evaluation.DefaultRubric())
	printEvaluation(cmd.OutOrStdout(), scorer.Evaluate(text, evaluateTags, len(evaluateTags) > 0))
	return nil
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	if duplicatesMinimum <= 0 || duplicatesMinimum > 1 {
		return fmt.Errorf("threshold must be in (0, 1]")
	}
	text, err := readText(args[0])
	if err != nil {
		return err
	}
	scorer := similarity.NewScorer(similarity.Options{Threshold: duplicatesMinimum})
	printDuplicates(cmd.OutOrStdout(), scorer.Analyze(text))
	return nil
}

func readText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return text, nil
}
