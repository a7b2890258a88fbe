package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exportops/tradewatch/internal/accuracy"
	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/dataset"
	"github.com/exportops/tradewatch/internal/pipeline"
)

func accuracyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Score detection against a planted-anomaly truth file",
		Long: `Runs detection over a synthetic dataset and compares the findings
against the planted_anomalies.json truth file in the same directory.
Used for benchmarking detector changes.`,
		RunE: runAccuracy,
	}

	cmd.Flags().String("data", "data", "dataset directory with planted_anomalies.json")
	cmd.Flags().String("llm-provider", "", "completion provider (openai, groq, gemini)")
	cmd.Flags().String("llm-model", "", "completion model override")
	cmd.Flags().String("llm-api-key", "", "completion service API key")
	cmd.Flags().String("llm-base-url", "", "completion service base URL override")

	_ = viper.BindPFlag("data.dir", cmd.Flags().Lookup("data"))
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", cmd.Flags().Lookup("llm-model"))
	_ = viper.BindPFlag("llm.api_key", cmd.Flags().Lookup("llm-api-key"))
	_ = viper.BindPFlag("llm.base_url", cmd.Flags().Lookup("llm-base-url"))

	return cmd
}

func runAccuracy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir := viper.GetString("data.dir")

	planted, err := dataset.LoadPlanted(filepath.Join(dir, dataset.PlantedFile))
	if err != nil {
		return common.NewUserError("failed to load planted anomalies", err)
	}

	ds, err := dataset.NewLoader(slog.Default()).LoadDir(dir)
	if err != nil {
		return common.NewUserError("failed to load dataset", err)
	}

	completer, err := newCompleter(ctx)
	if err != nil {
		return common.NewUserError("failed to configure completion service", err)
	}

	report, err := pipeline.New(completer, slog.Default()).Run(ctx, ds)
	if err != nil {
		return common.NewUserError("detection failed", err)
	}

	score := accuracy.Evaluate(planted, report.Anomalies)
	printScore(score, len(planted))
	return nil
}

func printScore(score accuracy.Score, planted int) {
	fmt.Printf("\nAccuracy against %d planted anomalies\n\n", planted)
	fmt.Printf("  Precision: %.1f%%\n", score.Precision*100)
	fmt.Printf("  Recall:    %.1f%%\n", score.Recall*100)
	fmt.Printf("  F1:        %.1f%%\n", score.F1*100)
	fmt.Printf("  Found %d, missed %d, false positives %d\n",
		score.TruePositives, len(score.Missed), len(score.FalsePositives))

	if len(score.Missed) > 0 {
		fmt.Println("\n  Missed:")
		for _, m := range score.Missed {
			fmt.Printf("    shipment %d  %s\n", m.ShipmentID, m.Type)
		}
	}
	if len(score.FalsePositives) > 0 {
		fmt.Println("\n  False positives:")
		for _, fp := range score.FalsePositives {
			fmt.Printf("    shipment %d  %s (layer %d)\n", fp.ShipmentID, fp.Type, fp.Layer)
		}
	}
}
