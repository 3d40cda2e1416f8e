package domain

import "github.com/shopspring/decimal"

// MarketStats aggregates completed transfers.
type MarketStats struct {
	TotalTransactions  int64
	TotalCreditsTraded int64
	AveragePrice       decimal.Decimal
	TotalValue         decimal.Decimal
}
