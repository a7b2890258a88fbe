package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/dataset"
	"github.com/exportops/tradewatch/internal/llm"
	"github.com/exportops/tradewatch/internal/model"
	"github.com/exportops/tradewatch/internal/pipeline"
	"github.com/exportops/tradewatch/internal/storage"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run anomaly detection over a dataset directory",
		Long: `Runs the three detection layers over the shipment tables in the data
directory and writes a unified anomaly report.

The semantic layer needs a completion service; configure one with the
--llm-provider and --llm-api-key flags (or TRADEWATCH_LLM_API_KEY). Without
one the first two layers still run in full.`,
		RunE: runDetect,
	}

	cmd.Flags().String("data", "data", "dataset directory (shipments.csv and reference tables)")
	cmd.Flags().String("output", "anomaly_report.json", "report output path")
	cmd.Flags().String("db", "", "SQLite database to persist the run (optional)")
	cmd.Flags().Bool("summary", false, "generate an executive summary (needs a completion service)")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.Flags().String("llm-provider", "", "completion provider (openai, groq, gemini)")
	cmd.Flags().String("llm-model", "", "completion model override")
	cmd.Flags().String("llm-api-key", "", "completion service API key")
	cmd.Flags().String("llm-base-url", "", "completion service base URL override")

	_ = viper.BindPFlag("data.dir", cmd.Flags().Lookup("data"))
	_ = viper.BindPFlag("report.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("storage.db", cmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("llm.provider", cmd.Flags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", cmd.Flags().Lookup("llm-model"))
	_ = viper.BindPFlag("llm.api_key", cmd.Flags().Lookup("llm-api-key"))
	_ = viper.BindPFlag("llm.base_url", cmd.Flags().Lookup("llm-base-url"))

	return cmd
}

func runDetect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	ds, err := dataset.NewLoader(slog.Default()).LoadDir(viper.GetString("data.dir"))
	if err != nil {
		return common.NewUserError("failed to load dataset", err)
	}

	completer, err := newCompleter(ctx)
	if err != nil {
		return common.NewUserError("failed to configure completion service", err)
	}
	if completer == nil {
		slog.Info("no completion service configured, semantic layer will be skipped")
	}

	cfg := pipeline.DefaultConfig()
	cfg.ExecutiveSummary, _ = cmd.Flags().GetBool("summary")
	if cfg.ExecutiveSummary && completer == nil {
		return common.NewUserError("--summary needs a completion service; set --llm-provider and --llm-api-key", common.ErrNoCompleter)
	}

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newLayerProgressBar()
		cfg.Progress = func(_, _ int) { _ = bar.Add(1) }
	}

	report, err := pipeline.NewWithConfig(completer, slog.Default(), cfg).Run(ctx, ds)
	if err != nil {
		return common.NewUserError("detection failed", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	printReportSummary(report)

	output := viper.GetString("report.output")
	if err := writeReportFile(report, output); err != nil {
		return common.NewUserError("failed to write report", err)
	}
	fmt.Printf("\nReport written to %s\n", output)

	if dbPath := viper.GetString("storage.db"); dbPath != "" {
		if err := persistReport(ctx, dbPath, report); err != nil {
			common.LogError(err, "failed to persist run", common.Fields{"db": dbPath, "run": report.ID})
			return common.NewUserError("failed to persist run", err)
		}
		fmt.Printf("Run %s saved to %s\n", report.ID, dbPath)
	}

	return nil
}

// newCompleter builds the completion client from configuration, or returns
// nil when none is configured.
func newCompleter(ctx context.Context) (llm.Completer, error) {
	provider := viper.GetString("llm.provider")
	apiKey := viper.GetString("llm.api_key")
	if provider == "" && apiKey == "" {
		return nil, nil
	}
	if provider == "" {
		provider = "groq"
	}

	return llm.NewCompleter(ctx, llm.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    viper.GetString("llm.model"),
		BaseURL:  viper.GetString("llm.base_url"),
	})
}

func newLayerProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(3,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Running detection layers...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}

func printReportSummary(report *pipeline.Report) {
	bySeverity := report.CountBySeverity()
	byLayer := report.CountByLayer()

	fmt.Printf("\nDetected %d anomalies in %s\n\n", report.TotalAnomalies(), report.Duration.Round(time.Millisecond))
	fmt.Printf("  By severity:  CRITICAL %d | HIGH %d | MEDIUM %d | LOW %d\n",
		bySeverity[model.SeverityCritical],
		bySeverity[model.SeverityHigh],
		bySeverity[model.SeverityMedium],
		bySeverity[model.SeverityLow])
	fmt.Printf("  By layer:     rules %d | statistical %d | semantic %d\n",
		byLayer[model.LayerRules],
		byLayer[model.LayerStatistical],
		byLayer[model.LayerSemantic])
	if report.LLMCalls > 0 {
		fmt.Printf("  LLM usage:    %d calls, ~%d tokens\n", report.LLMCalls, report.Tokens.Total())
	}
	if report.ExecutiveSummary != "" {
		fmt.Printf("\n%s\n", report.ExecutiveSummary)
	}
}

func writeReportFile(report *pipeline.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return report.WriteJSON(f)
}

func persistReport(ctx context.Context, dbPath string, report *pipeline.Report) error {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.SaveReport(ctx, report)
}
