package model

import "math/big"

// OptimizationResult is the verdict produced for one position.
type OptimizationResult struct {
	UserID          string
	CurrentPosition Position
	SuggestedMarket *MarketSnapshot
	PotentialAPY    float64
	APYDelta        float64  // percentage points over the current supply APY
	GasCost         *big.Int // native-token wei for both rebalance legs
	// GasEstimateDegraded marks verdicts where at least one simulation leg
	// failed and its gas was taken as zero. Consumers must not trust a
	// low-gas verdict without checking this.
	GasEstimateDegraded bool
	IsProfit            bool
}

// Simulation is the typed result of a dry-run against the execution layer.
type Simulation struct {
	Success     bool
	GasEstimate uint64
}

// TxResult is the typed result of an on-chain write. Reason carries a
// structured failure description, never a raw RPC error object.
type TxResult struct {
	Success bool
	TxHash  string
	Reason  string
}
