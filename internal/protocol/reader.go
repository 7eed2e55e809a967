// Package protocol provides thin read bindings over the lending protocols the
// engine rebalances between. Readers return normalized snapshots and position
// state; all decision logic lives upstream.
package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldscope/internal/model"
)

// PositionState is the raw per-market position read for one user.
type PositionState struct {
	SupplyShares *big.Int
	BorrowShares *big.Int
	SupplyAssets *big.Int
	BorrowAssets *big.Int
}

// Reader fetches live market and position state for one protocol.
type Reader interface {
	Protocol() model.Protocol
	MarketIDs() []string
	FetchMarket(ctx context.Context, marketID string) (model.MarketSnapshot, error)
	FetchPosition(ctx context.Context, user common.Address, marketID string) (PositionState, error)
}
