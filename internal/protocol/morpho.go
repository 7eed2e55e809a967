package protocol

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldscope/internal/chain"
	"yieldscope/internal/config"
	"yieldscope/internal/model"
	"yieldscope/internal/risk"
)

// morphoMarketParams mirrors Morpho Blue's MarketParams struct for tuple
// packing against the IRM.
type morphoMarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	Irm             common.Address
	Lltv            *big.Int
}

// morphoMarketState mirrors Morpho Blue's Market struct.
type morphoMarketState struct {
	TotalSupplyAssets *big.Int
	TotalSupplyShares *big.Int
	TotalBorrowAssets *big.Int
	TotalBorrowShares *big.Int
	LastUpdate        *big.Int
	Fee               *big.Int
}

// MorphoReader reads Morpho Blue market and position state.
type MorphoReader struct {
	client       *chain.Client
	morpho       common.Address
	markets      []config.MarketConfig
	tokenMeta    *TokenMetaCache
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

func NewMorphoReader(client *chain.Client, cfg *config.Config, tokenMeta *TokenMetaCache, logger *zap.Logger) *MorphoReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MorphoReader{
		client:       client,
		morpho:       common.HexToAddress(cfg.MorphoAddress),
		markets:      cfg.MorphoMarkets,
		tokenMeta:    tokenMeta,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}
}

func (r *MorphoReader) Protocol() model.Protocol {
	return model.ProtocolMorpho
}

func (r *MorphoReader) MarketIDs() []string {
	ids := make([]string, 0, len(r.markets))
	for _, market := range r.markets {
		ids = append(ids, market.ID)
	}
	return ids
}

func (r *MorphoReader) marketConfig(marketID string) (config.MarketConfig, error) {
	for _, market := range r.markets {
		if market.ID == marketID {
			return market, nil
		}
	}
	return config.MarketConfig{}, fmt.Errorf("unknown morpho market %s", marketID)
}

// FetchMarket reads current market state and derives APY and risk fields.
func (r *MorphoReader) FetchMarket(ctx context.Context, marketID string) (model.MarketSnapshot, error) {
	marketCfg, err := r.marketConfig(marketID)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	var snapshot model.MarketSnapshot
	err = withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		state, err := r.fetchMarketState(ctx, marketID)
		if err != nil {
			return err
		}
		params, err := r.fetchMarketParams(ctx, marketID)
		if err != nil {
			return err
		}

		borrowAPY, err := r.fetchBorrowAPY(ctx, params, state)
		if err != nil {
			// The IRM view is best-effort: the rest of the snapshot is
			// still useful without rates.
			r.logger.Warn("morpho borrow rate unavailable",
				zap.String("market", marketCfg.Name), zap.Error(err))
			borrowAPY = 0
		}

		var decimals uint8
		if meta, err := FetchTokenMeta(ctx, r.client, params.LoanToken, r.tokenMeta); err != nil {
			r.logger.Warn("token metadata unavailable",
				zap.String("token", params.LoanToken.Hex()), zap.Error(err))
		} else {
			decimals = meta.Decimals
		}

		utilization := Utilization(state.TotalBorrowAssets, state.TotalSupplyAssets)
		feeFraction := WadToPercent(state.Fee) / 100
		supplyAPY := borrowAPY * (utilization / 100) * (1 - feeFraction)

		snapshot = model.MarketSnapshot{
			Protocol:          model.ProtocolMorpho,
			MarketID:          marketID,
			Name:              marketCfg.Name,
			SupplyAPY:         supplyAPY,
			BorrowAPY:         borrowAPY,
			Utilization:       utilization,
			TotalSupply:       state.TotalSupplyAssets,
			TotalBorrow:       state.TotalBorrowAssets,
			Liquidity:         new(big.Int).Sub(state.TotalSupplyAssets, state.TotalBorrowAssets),
			LLTV:              marketCfg.LLTV,
			CollateralToken:   params.CollateralToken,
			LoanToken:         params.LoanToken,
			LoanTokenDecimals: decimals,
			IsHealthy:         risk.IsHealthy(state.TotalBorrowAssets, state.TotalSupplyAssets),
			UtilizationRisk:   risk.Classify(utilization),
			FetchedAt:         time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("fetch morpho market %s: %w", marketCfg.Name, err)
	}
	return snapshot, nil
}

// FetchPosition reads the user's shares and converts them to assets at the
// market's current accrual state.
func (r *MorphoReader) FetchPosition(ctx context.Context, user common.Address, marketID string) (PositionState, error) {
	if _, err := r.marketConfig(marketID); err != nil {
		return PositionState{}, err
	}

	var position PositionState
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		state, err := r.fetchMarketState(ctx, marketID)
		if err != nil {
			return err
		}

		morphoABI, err := MorphoABI()
		if err != nil {
			return fmt.Errorf("parse morpho abi: %w", err)
		}
		data, err := morphoABI.Pack("position", common.HexToHash(marketID), user)
		if err != nil {
			return fmt.Errorf("pack position: %w", err)
		}
		out, err := r.client.CallContract(ctx, r.morpho, data)
		if err != nil {
			return fmt.Errorf("call position: %w", err)
		}
		values, err := morphoABI.Unpack("position", out)
		if err != nil {
			return fmt.Errorf("decode position: %w", err)
		}

		supplyShares, err := asBigInt(values[0])
		if err != nil {
			return err
		}
		borrowShares, err := asBigInt(values[1])
		if err != nil {
			return err
		}

		position = PositionState{
			SupplyShares: supplyShares,
			BorrowShares: borrowShares,
			SupplyAssets: SharesToAssets(supplyShares, state.TotalSupplyAssets, state.TotalSupplyShares),
			BorrowAssets: SharesToAssets(borrowShares, state.TotalBorrowAssets, state.TotalBorrowShares),
		}
		return nil
	})
	if err != nil {
		return PositionState{}, fmt.Errorf("fetch morpho position %s: %w", marketID, err)
	}
	return position, nil
}

func (r *MorphoReader) fetchMarketState(ctx context.Context, marketID string) (morphoMarketState, error) {
	morphoABI, err := MorphoABI()
	if err != nil {
		return morphoMarketState{}, fmt.Errorf("parse morpho abi: %w", err)
	}

	data, err := morphoABI.Pack("market", common.HexToHash(marketID))
	if err != nil {
		return morphoMarketState{}, fmt.Errorf("pack market: %w", err)
	}
	out, err := r.client.CallContract(ctx, r.morpho, data)
	if err != nil {
		return morphoMarketState{}, fmt.Errorf("call market: %w", err)
	}
	values, err := morphoABI.Unpack("market", out)
	if err != nil {
		return morphoMarketState{}, fmt.Errorf("decode market: %w", err)
	}
	if len(values) != 6 {
		return morphoMarketState{}, fmt.Errorf("unexpected market output arity %d", len(values))
	}

	var state morphoMarketState
	fields := []**big.Int{
		&state.TotalSupplyAssets, &state.TotalSupplyShares,
		&state.TotalBorrowAssets, &state.TotalBorrowShares,
		&state.LastUpdate, &state.Fee,
	}
	for i, field := range fields {
		value, err := asBigInt(values[i])
		if err != nil {
			return morphoMarketState{}, err
		}
		*field = value
	}
	return state, nil
}

func (r *MorphoReader) fetchMarketParams(ctx context.Context, marketID string) (morphoMarketParams, error) {
	morphoABI, err := MorphoABI()
	if err != nil {
		return morphoMarketParams{}, fmt.Errorf("parse morpho abi: %w", err)
	}

	data, err := morphoABI.Pack("idToMarketParams", common.HexToHash(marketID))
	if err != nil {
		return morphoMarketParams{}, fmt.Errorf("pack idToMarketParams: %w", err)
	}
	out, err := r.client.CallContract(ctx, r.morpho, data)
	if err != nil {
		return morphoMarketParams{}, fmt.Errorf("call idToMarketParams: %w", err)
	}
	values, err := morphoABI.Unpack("idToMarketParams", out)
	if err != nil {
		return morphoMarketParams{}, fmt.Errorf("decode idToMarketParams: %w", err)
	}
	if len(values) != 5 {
		return morphoMarketParams{}, fmt.Errorf("unexpected idToMarketParams output arity %d", len(values))
	}

	params := morphoMarketParams{}
	addrs := []*common.Address{&params.LoanToken, &params.CollateralToken, &params.Oracle, &params.Irm}
	for i, addr := range addrs {
		value, ok := values[i].(common.Address)
		if !ok {
			return morphoMarketParams{}, fmt.Errorf("unexpected address type %T", values[i])
		}
		*addr = value
	}
	lltv, err := asBigInt(values[4])
	if err != nil {
		return morphoMarketParams{}, err
	}
	params.Lltv = lltv
	return params, nil
}

// fetchBorrowAPY queries the market's IRM for the current per-second borrow
// rate and annualizes it.
func (r *MorphoReader) fetchBorrowAPY(ctx context.Context, params morphoMarketParams, state morphoMarketState) (float64, error) {
	irmABI, err := MorphoIRMABI()
	if err != nil {
		return 0, fmt.Errorf("parse irm abi: %w", err)
	}

	data, err := irmABI.Pack("borrowRateView", params, state)
	if err != nil {
		return 0, fmt.Errorf("pack borrowRateView: %w", err)
	}
	out, err := r.client.CallContract(ctx, params.Irm, data)
	if err != nil {
		return 0, fmt.Errorf("call borrowRateView: %w", err)
	}
	values, err := irmABI.Unpack("borrowRateView", out)
	if err != nil {
		return 0, fmt.Errorf("decode borrowRateView: %w", err)
	}
	rate, err := asBigInt(values[0])
	if err != nil {
		return 0, err
	}
	return PerSecondWadToAPY(rate), nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	out, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected integer type %T", value)
	}
	return out, nil
}
