package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"yieldscope/internal/exec"
	"yieldscope/internal/model"
)

// ErrNotProfitable is returned when Execute is handed a verdict that does not
// clear the profitability bar.
var ErrNotProfitable = errors.New("optimization is not profitable")

// StrandedFundsError reports the one failure mode that needs operator
// attention: the withdraw leg landed but the supply leg did not, leaving the
// principal idle in the user's wallet.
type StrandedFundsError struct {
	UserID       string
	Amount       *big.Int
	FromProtocol model.Protocol
	FromMarket   string
	ToProtocol   model.Protocol
	ToMarket     string
	Reason       string
}

func (e *StrandedFundsError) Error() string {
	return fmt.Sprintf("funds stranded for user %s: withdrew %s from %s/%s but supply to %s/%s failed: %s",
		e.UserID, e.Amount, e.FromProtocol, e.FromMarket, e.ToProtocol, e.ToMarket, e.Reason)
}

// Executor carries out a profitable verdict as withdraw-then-supply.
type Executor struct {
	execution exec.Execution
	logger    *zap.Logger
}

func NewExecutor(execution exec.Execution, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{execution: execution, logger: logger}
}

// Execute moves the position's full supply into the suggested market. The
// withdraw must confirm before the supply is attempted; a supply failure
// after a confirmed withdraw surfaces as *StrandedFundsError.
func (e *Executor) Execute(ctx context.Context, userID string, opt *model.OptimizationResult) error {
	if opt == nil || !opt.IsProfit || opt.SuggestedMarket == nil {
		return ErrNotProfitable
	}
	position := opt.CurrentPosition
	target := opt.SuggestedMarket

	e.logger.Info("executing rebalance",
		zap.String("user", userID),
		zap.String("from", position.MarketID),
		zap.String("to", target.MarketID),
		zap.Float64("apy_delta", opt.APYDelta))

	withdraw, err := e.execution.ExecuteWithdraw(ctx, userID, position.Protocol, position.MarketID, position.SupplyAmount)
	if err != nil {
		return fmt.Errorf("withdraw from %s/%s: %w", position.Protocol, position.MarketID, err)
	}
	if !withdraw.Success {
		return fmt.Errorf("withdraw from %s/%s reverted: %s", position.Protocol, position.MarketID, withdraw.Reason)
	}

	supply, err := e.execution.ExecuteSupply(ctx, userID, target.Protocol, target.MarketID, position.SupplyAmount)
	if err != nil || !supply.Success {
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = supply.Reason
		}
		return &StrandedFundsError{
			UserID:       userID,
			Amount:       position.SupplyAmount,
			FromProtocol: position.Protocol,
			FromMarket:   position.MarketID,
			ToProtocol:   target.Protocol,
			ToMarket:     target.MarketID,
			Reason:       reason,
		}
	}

	e.logger.Info("rebalance complete",
		zap.String("user", userID),
		zap.String("tx", supply.TxHash))
	return nil
}
