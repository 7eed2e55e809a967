// Package exec performs gas simulations and on-chain writes for rebalancing.
// The engine only ever sees typed Simulation and TxResult values; signing is
// delegated to a wallet-owned Sender capability.
package exec

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"yieldscope/internal/model"
)

// Execution is the contract the optimizer drives. Implementations must fail
// fast: the caller treats any error as skip-and-continue (simulations) or
// abort-with-report (writes).
type Execution interface {
	SimulateWithdraw(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.Simulation, error)
	SimulateSupply(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.Simulation, error)
	ExecuteWithdraw(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.TxResult, error)
	ExecuteSupply(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.TxResult, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Sender signs and broadcasts a transaction on behalf of a user. The engine
// never touches key material; it hands calldata to this capability and gets
// a transaction hash back.
type Sender interface {
	SendTransaction(ctx context.Context, userID string, to common.Address, data []byte, gasLimit uint64) (string, error)
}
