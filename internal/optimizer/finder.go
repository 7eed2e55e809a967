// Package optimizer holds the rebalancing decision engine: finding the best
// eligible market for a position and executing the two-step move.
package optimizer

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"yieldscope/internal/exec"
	"yieldscope/internal/model"
)

// Finder produces profitability verdicts for single positions against a
// snapshot universe.
type Finder struct {
	execution exec.Execution
	// minDelta is the minimum APY improvement, in percentage points,
	// before a move is considered at all.
	minDelta float64
	// payback is the safety multiple for the gas payback rule: monthly
	// profit must exceed payback x gas cost.
	payback float64
	logger  *zap.Logger
}

func NewFinder(execution exec.Execution, minDelta, payback float64, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{execution: execution, minDelta: minDelta, payback: payback, logger: logger}
}

// FindBest scans every snapshot across every protocol and returns the
// profitability verdict for the best eligible alternative, or nil when no
// market beats the position's current APY by more than the minimum delta.
//
// Markets that are unhealthy or at HIGH utilization risk are never
// candidates. The scan keeps the first market reaching the running maximum;
// strictly-greater comparison makes the winner deterministic in scan order.
func (f *Finder) FindBest(ctx context.Context, userID string, position model.Position, universe map[model.Protocol][]model.MarketSnapshot) (*model.OptimizationResult, error) {
	currentAPY := position.Metrics.SupplyAPY

	var best *model.MarketSnapshot
	bestAPY := currentAPY
	for _, proto := range []model.Protocol{model.ProtocolMorpho, model.ProtocolAave} {
		for i := range universe[proto] {
			snapshot := &universe[proto][i]
			if snapshot.Protocol == position.Protocol && snapshot.MarketID == position.MarketID {
				continue
			}
			if !snapshot.IsHealthy || snapshot.UtilizationRisk == model.RiskHigh {
				continue
			}
			if totalAPY := snapshot.TotalAPY(); totalAPY > bestAPY {
				best = snapshot
				bestAPY = totalAPY
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	delta := bestAPY - currentAPY
	if delta <= f.minDelta {
		f.logger.Debug("candidate below minimum APY delta",
			zap.String("market", best.Name),
			zap.Float64("delta", delta),
			zap.Float64("min_delta", f.minDelta))
		return nil, nil
	}

	gasCost, degraded := f.estimateGasCost(ctx, userID, position, best)
	profit := monthlyProfit(position.SupplyAmount, currentAPY, bestAPY)

	threshold := new(big.Float).Mul(
		new(big.Float).SetInt(gasCost),
		big.NewFloat(f.payback),
	)

	return &model.OptimizationResult{
		UserID:              userID,
		CurrentPosition:     position,
		SuggestedMarket:     best,
		PotentialAPY:        bestAPY,
		APYDelta:            delta,
		GasCost:             gasCost,
		GasEstimateDegraded: degraded,
		IsProfit:            profit.Cmp(threshold) > 0,
	}, nil
}

// estimateGasCost prices both rebalance legs in native-token wei. A failed
// estimation leg contributes zero gas and marks the verdict degraded rather
// than aborting the scan.
func (f *Finder) estimateGasCost(ctx context.Context, userID string, position model.Position, target *model.MarketSnapshot) (*big.Int, bool) {
	degraded := false
	var gasUnits uint64

	withdrawSim, err := f.execution.SimulateWithdraw(ctx, userID, position.Protocol, position.MarketID, position.SupplyAmount)
	if err != nil || !withdrawSim.Success {
		f.logger.Warn("withdraw simulation unavailable",
			zap.String("market", position.MarketID), zap.Error(err))
		degraded = true
	} else {
		gasUnits += withdrawSim.GasEstimate
	}

	supplySim, err := f.execution.SimulateSupply(ctx, userID, target.Protocol, target.MarketID, position.SupplyAmount)
	if err != nil || !supplySim.Success {
		f.logger.Warn("supply simulation unavailable",
			zap.String("market", target.MarketID), zap.Error(err))
		degraded = true
	} else {
		gasUnits += supplySim.GasEstimate
	}

	gasPrice, err := f.execution.GasPrice(ctx)
	if err != nil {
		f.logger.Warn("gas price unavailable", zap.Error(err))
		return big.NewInt(0), true
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), gasPrice)
	return cost, degraded
}

// monthlyProfit is the simple-interest approximation of the extra yield one
// month of the new rate earns on the position's principal.
func monthlyProfit(amount *big.Int, currentAPY, newAPY float64) *big.Float {
	if amount == nil {
		return new(big.Float)
	}
	delta := (newAPY - currentAPY) / 100
	profit := new(big.Float).SetInt(amount)
	profit.Mul(profit, big.NewFloat(delta))
	return profit.Quo(profit, big.NewFloat(12))
}
