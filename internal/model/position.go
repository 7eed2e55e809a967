package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// HealthFactorMax is reported for positions with no debt. A finite sentinel
// keeps portfolio aggregates and serialized events well-formed.
const HealthFactorMax = 1e9

// PositionMetrics carries the market rates a position was read against.
type PositionMetrics struct {
	SupplyAPY float64
	BorrowAPY float64
}

// Position is a user's stake in one market. Positions are read through from
// chain state on every check and never persisted.
//
// HealthFactor is the raw supplyAssets/borrowAssets ratio the upstream system
// used, not a collateral-value health factor with liquidation thresholds.
type Position struct {
	Protocol     Protocol
	MarketID     string
	SupplyAmount *big.Int
	BorrowAmount *big.Int
	// Decimals is the loan token's decimal count, used to express
	// aggregate amounts in human units. Zero leaves base units.
	Decimals     uint8
	HealthFactor float64
	Metrics      PositionMetrics
}

// PortfolioStatus aggregates all positions for one user across protocols.
// Totals are scaled by each position's token decimals, so a 6-decimal
// stablecoin position of 4_000_000 base units contributes 4.
type PortfolioStatus struct {
	TotalSupplyUSD decimal.Decimal
	TotalBorrowUSD decimal.Decimal
	HealthFactor   float64
	NetAPY         float64
	Positions      []Position
}

// ComputePortfolio folds positions into a portfolio view. The portfolio health
// factor is the minimum across positions: the portfolio is only as safe as its
// weakest position. An empty portfolio reports HealthFactorMax.
func ComputePortfolio(positions []Position) PortfolioStatus {
	status := PortfolioStatus{
		TotalSupplyUSD: decimal.Zero,
		TotalBorrowUSD: decimal.Zero,
		HealthFactor:   HealthFactorMax,
		Positions:      positions,
	}

	weightedAPY := decimal.Zero
	for _, pos := range positions {
		if pos.HealthFactor < status.HealthFactor {
			status.HealthFactor = pos.HealthFactor
		}
		supply := decimal.NewFromBigInt(pos.SupplyAmount, -int32(pos.Decimals))
		borrow := decimal.NewFromBigInt(pos.BorrowAmount, -int32(pos.Decimals))
		status.TotalSupplyUSD = status.TotalSupplyUSD.Add(supply)
		status.TotalBorrowUSD = status.TotalBorrowUSD.Add(borrow)
		weightedAPY = weightedAPY.Add(supply.Mul(decimal.NewFromFloat(pos.Metrics.SupplyAPY)))
	}

	if status.TotalSupplyUSD.IsPositive() {
		netAPY, _ := weightedAPY.Div(status.TotalSupplyUSD).Float64()
		status.NetAPY = netAPY
	}

	return status
}
