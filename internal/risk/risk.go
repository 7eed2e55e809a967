// Package risk classifies lending markets by utilization pressure and
// solvency. Both signals are independent: callers must check both before
// treating a market as a safe rebalance target.
package risk

import (
	"math/big"

	"yieldscope/internal/model"
)

// Utilization thresholds in percent.
const (
	MediumUtilization = 50.0
	HighUtilization   = 80.0
)

// Classify maps a utilization percentage to a risk tier.
func Classify(utilization float64) model.RiskTier {
	switch {
	case utilization > HighUtilization:
		return model.RiskHigh
	case utilization > MediumUtilization:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// IsHealthy reports whether a market's borrows are covered by its supply.
func IsHealthy(totalBorrow, totalSupply *big.Int) bool {
	if totalBorrow == nil || totalSupply == nil {
		return false
	}
	return totalBorrow.Cmp(totalSupply) <= 0
}
