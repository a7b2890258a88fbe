package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/storage"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List detection runs saved to the database",
		RunE:  runRuns,
	}

	cmd.Flags().String("db", "tradewatch.db", "SQLite database path")
	cmd.Flags().Int("limit", 20, "maximum runs to show")
	_ = viper.BindPFlag("storage.db", cmd.Flags().Lookup("db"))

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := storage.NewSQLiteStorage(viper.GetString("storage.db"))
	if err != nil {
		return common.NewUserError("failed to open database", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return common.NewUserError("failed to migrate database", err)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return common.NewUserError("failed to list runs", err)
	}

	if len(runs) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %9s  %9s  %s\n", "ID", "GENERATED", "ANOMALIES", "LLM CALLS", "DURATION")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %9d  %9d  %s\n",
			r.ID,
			r.GeneratedAt.Local().Format("2006-01-02 15:04:05"),
			r.TotalAnomalies,
			r.LLMCalls,
			r.Duration.Round(time.Millisecond))
	}
	return nil
}
