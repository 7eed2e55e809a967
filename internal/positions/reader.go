// Package positions reads a user's open lending positions across protocols.
// Positions are recomputed from chain state on every check.
package positions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldscope/internal/marketdata"
	"yieldscope/internal/model"
	"yieldscope/internal/protocol"
)

// Reader enumerates configured markets and reports nonzero positions.
type Reader struct {
	readers map[model.Protocol]protocol.Reader
	markets *marketdata.Cache
	logger  *zap.Logger
}

func NewReader(readers []protocol.Reader, markets *marketdata.Cache, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	byProtocol := make(map[model.Protocol]protocol.Reader, len(readers))
	for _, reader := range readers {
		byProtocol[reader.Protocol()] = reader
	}
	return &Reader{readers: byProtocol, markets: markets, logger: logger}
}

// Check returns the user's positions for one protocol. When marketID is
// empty, every configured market is checked. Per-market read failures are
// logged and skipped; only markets with nonzero supply or borrow are
// reported.
func (r *Reader) Check(ctx context.Context, user common.Address, proto model.Protocol, marketID string) ([]model.Position, error) {
	reader, ok := r.readers[proto]
	if !ok {
		return nil, fmt.Errorf("no reader for protocol %s", proto)
	}

	ids := reader.MarketIDs()
	if marketID != "" {
		ids = []string{marketID}
	}

	positions := make([]model.Position, 0, len(ids))
	for _, id := range ids {
		state, err := reader.FetchPosition(ctx, user, id)
		if err != nil {
			// A single explicitly requested market fails loudly;
			// batch enumeration skips and continues.
			if marketID != "" {
				return nil, fmt.Errorf("check %s market %s: %w", proto, id, err)
			}
			r.logger.Warn("position read failed",
				zap.String("protocol", string(proto)),
				zap.String("market", id),
				zap.Error(err))
			continue
		}
		if isZero(state.SupplyAssets) && isZero(state.BorrowAssets) {
			continue
		}

		position := model.Position{
			Protocol:     proto,
			MarketID:     id,
			SupplyAmount: state.SupplyAssets,
			BorrowAmount: state.BorrowAssets,
			HealthFactor: healthFactor(state.SupplyAssets, state.BorrowAssets),
		}

		if r.markets != nil {
			snapshot, err := r.markets.Get(ctx, proto, id)
			if err != nil {
				r.logger.Warn("market metrics unavailable for position",
					zap.String("market", id), zap.Error(err))
			} else {
				position.Decimals = snapshot.LoanTokenDecimals
				position.Metrics = model.PositionMetrics{
					SupplyAPY: snapshot.SupplyAPY,
					BorrowAPY: snapshot.BorrowAPY,
				}
			}
		}

		positions = append(positions, position)
	}
	return positions, nil
}

// All returns the user's positions across every protocol.
func (r *Reader) All(ctx context.Context, user common.Address) ([]model.Position, error) {
	all := make([]model.Position, 0)
	for _, proto := range []model.Protocol{model.ProtocolMorpho, model.ProtocolAave} {
		if _, ok := r.readers[proto]; !ok {
			continue
		}
		positions, err := r.Check(ctx, user, proto, "")
		if err != nil {
			return nil, err
		}
		all = append(all, positions...)
	}
	return all, nil
}

// Portfolio aggregates the user's positions into a portfolio view.
func (r *Reader) Portfolio(ctx context.Context, user common.Address) (model.PortfolioStatus, error) {
	positions, err := r.All(ctx, user)
	if err != nil {
		return model.PortfolioStatus{}, err
	}
	return model.ComputePortfolio(positions), nil
}

func isZero(value *big.Int) bool {
	return value == nil || value.Sign() == 0
}

// healthFactor is the simplified supply/borrow asset ratio. A position with
// no debt reports model.HealthFactorMax rather than a division artifact.
func healthFactor(supply, borrow *big.Int) float64 {
	if isZero(borrow) {
		return model.HealthFactorMax
	}
	if isZero(supply) {
		return 0
	}
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(supply),
		new(big.Float).SetInt(borrow),
	).Float64()
	if ratio > model.HealthFactorMax {
		return model.HealthFactorMax
	}
	return ratio
}
