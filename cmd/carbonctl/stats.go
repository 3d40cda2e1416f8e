package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/carbon-ledger/internal/repository"
)

var statsCmd = &cobra.Command{
	Use:   "market-stats",
	Short: "Print aggregates over completed credit transfers",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	pg, err := env.connect(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	stats, err := repository.NewCreditTransactionRepository(pg.Pool).MarketStats(ctx)
	if err != nil {
		return fmt.Errorf("market stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Completed transfers: %d\n", stats.TotalTransactions)
	fmt.Fprintf(out, "Credits traded:      %d\n", stats.TotalCreditsTraded)
	fmt.Fprintf(out, "Average price:       %s\n", stats.AveragePrice.StringFixed(2))
	fmt.Fprintf(out, "Total value:         %s\n", stats.TotalValue.StringFixed(2))
	return nil
}
