package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol identifies a lending protocol.
type Protocol string

const (
	ProtocolMorpho Protocol = "morpho"
	ProtocolAave   Protocol = "aave"
)

// RiskTier buckets a market by utilization pressure.
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// MarketSnapshot is one lending market observed at one point in time.
// Snapshots are immutable once built; a refresh replaces the whole entry.
type MarketSnapshot struct {
	Protocol        Protocol
	MarketID        string
	Name            string
	SupplyAPY       float64 // percent
	BorrowAPY       float64 // percent
	RewardsAPY      float64 // percent, zero when the market pays no incentives
	Utilization     float64 // percent, 0-100
	TotalSupply     *big.Int
	TotalBorrow     *big.Int
	Liquidity       *big.Int
	LLTV            float64
	CollateralToken common.Address
	LoanToken       common.Address
	// LoanTokenDecimals scales raw asset amounts to human units; zero
	// means the metadata read failed and amounts stay in base units.
	LoanTokenDecimals uint8
	IsHealthy         bool
	UtilizationRisk   RiskTier
	FetchedAt         time.Time
}

// TotalAPY is the supply APY plus reward incentives.
func (m *MarketSnapshot) TotalAPY() float64 {
	return m.SupplyAPY + m.RewardsAPY
}

// Key returns the cache key for a snapshot, scoped by protocol.
func (m *MarketSnapshot) Key() string {
	return string(m.Protocol) + ":" + m.MarketID
}

// TokenMeta holds immutable ERC-20 metadata.
type TokenMeta struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}
