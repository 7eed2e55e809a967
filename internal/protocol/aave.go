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

// AaveReader reads Aave V3 reserve and position state. Reserve totals come
// from the aToken and variable-debt token supplies; aToken balances rebase,
// so shares and assets coincide.
type AaveReader struct {
	client       *chain.Client
	pool         common.Address
	markets      []config.MarketConfig
	tokens       map[string]common.Address
	tokenMeta    *TokenMetaCache
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

func NewAaveReader(client *chain.Client, cfg *config.Config, tokenMeta *TokenMetaCache, logger *zap.Logger) *AaveReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := make(map[string]common.Address, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		tokens[token.Symbol] = common.HexToAddress(token.Address)
	}
	return &AaveReader{
		client:       client,
		pool:         common.HexToAddress(cfg.AavePoolAddress),
		markets:      cfg.AaveMarkets,
		tokens:       tokens,
		tokenMeta:    tokenMeta,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}
}

func (r *AaveReader) Protocol() model.Protocol {
	return model.ProtocolAave
}

func (r *AaveReader) MarketIDs() []string {
	ids := make([]string, 0, len(r.markets))
	for _, market := range r.markets {
		ids = append(ids, market.ID)
	}
	return ids
}

func (r *AaveReader) marketConfig(marketID string) (config.MarketConfig, error) {
	for _, market := range r.markets {
		if market.ID == marketID {
			return market, nil
		}
	}
	return config.MarketConfig{}, fmt.Errorf("unknown aave market %s", marketID)
}

func (r *AaveReader) underlying(marketCfg config.MarketConfig) (common.Address, error) {
	token, ok := r.tokens[marketCfg.LoanToken]
	if !ok {
		return common.Address{}, fmt.Errorf("token %s not configured", marketCfg.LoanToken)
	}
	return token, nil
}

// FetchMarket reads reserve rates and totals and derives risk fields.
func (r *AaveReader) FetchMarket(ctx context.Context, marketID string) (model.MarketSnapshot, error) {
	marketCfg, err := r.marketConfig(marketID)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	underlying, err := r.underlying(marketCfg)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	aToken := common.HexToAddress(marketCfg.AToken)
	debtToken := common.HexToAddress(marketCfg.VariableDebtToken)

	var snapshot model.MarketSnapshot
	err = withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		supplyAPY, borrowAPY, err := r.fetchReserveRates(ctx, underlying)
		if err != nil {
			return err
		}

		totalSupply, err := r.erc20TotalSupply(ctx, aToken)
		if err != nil {
			return fmt.Errorf("atoken supply: %w", err)
		}
		totalBorrow, err := r.erc20TotalSupply(ctx, debtToken)
		if err != nil {
			return fmt.Errorf("debt token supply: %w", err)
		}
		liquidity, err := r.erc20BalanceOf(ctx, underlying, aToken)
		if err != nil {
			return fmt.Errorf("reserve liquidity: %w", err)
		}

		var decimals uint8
		if meta, err := FetchTokenMeta(ctx, r.client, underlying, r.tokenMeta); err != nil {
			r.logger.Warn("token metadata unavailable",
				zap.String("token", underlying.Hex()), zap.Error(err))
		} else {
			decimals = meta.Decimals
		}

		utilization := Utilization(totalBorrow, totalSupply)
		snapshot = model.MarketSnapshot{
			Protocol:          model.ProtocolAave,
			MarketID:          marketID,
			Name:              marketCfg.Name,
			SupplyAPY:         supplyAPY,
			BorrowAPY:         borrowAPY,
			Utilization:       utilization,
			TotalSupply:       totalSupply,
			TotalBorrow:       totalBorrow,
			Liquidity:         liquidity,
			LLTV:              marketCfg.LLTV,
			CollateralToken:   underlying,
			LoanToken:         underlying,
			LoanTokenDecimals: decimals,
			IsHealthy:         risk.IsHealthy(totalBorrow, totalSupply),
			UtilizationRisk:   risk.Classify(utilization),
			FetchedAt:         time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("fetch aave market %s: %w", marketCfg.Name, err)
	}
	return snapshot, nil
}

// FetchPosition reads the user's aToken and variable-debt balances.
func (r *AaveReader) FetchPosition(ctx context.Context, user common.Address, marketID string) (PositionState, error) {
	marketCfg, err := r.marketConfig(marketID)
	if err != nil {
		return PositionState{}, err
	}
	aToken := common.HexToAddress(marketCfg.AToken)
	debtToken := common.HexToAddress(marketCfg.VariableDebtToken)

	var position PositionState
	err = withRetry(ctx, r.maxRetries, r.retryBackoff, func(ctx context.Context) error {
		supply, err := r.erc20BalanceOf(ctx, aToken, user)
		if err != nil {
			return fmt.Errorf("atoken balance: %w", err)
		}
		borrow, err := r.erc20BalanceOf(ctx, debtToken, user)
		if err != nil {
			return fmt.Errorf("debt balance: %w", err)
		}
		position = PositionState{
			SupplyShares: supply,
			BorrowShares: borrow,
			SupplyAssets: supply,
			BorrowAssets: borrow,
		}
		return nil
	})
	if err != nil {
		return PositionState{}, fmt.Errorf("fetch aave position %s: %w", marketID, err)
	}
	return position, nil
}

func (r *AaveReader) fetchReserveRates(ctx context.Context, underlying common.Address) (supplyAPY, borrowAPY float64, err error) {
	poolABI, err := AavePoolABI()
	if err != nil {
		return 0, 0, fmt.Errorf("parse aave abi: %w", err)
	}

	data, err := poolABI.Pack("getReserveData", underlying)
	if err != nil {
		return 0, 0, fmt.Errorf("pack getReserveData: %w", err)
	}
	out, err := r.client.CallContract(ctx, r.pool, data)
	if err != nil {
		return 0, 0, fmt.Errorf("call getReserveData: %w", err)
	}
	values, err := poolABI.Unpack("getReserveData", out)
	if err != nil {
		return 0, 0, fmt.Errorf("decode getReserveData: %w", err)
	}
	if len(values) < 5 {
		return 0, 0, fmt.Errorf("unexpected getReserveData output arity %d", len(values))
	}

	liquidityRate, err := asBigInt(values[2])
	if err != nil {
		return 0, 0, err
	}
	variableBorrowRate, err := asBigInt(values[4])
	if err != nil {
		return 0, 0, err
	}
	return RayToAPY(liquidityRate), RayToAPY(variableBorrowRate), nil
}

func (r *AaveReader) erc20TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("totalSupply")
	if err != nil {
		return nil, fmt.Errorf("pack totalSupply: %w", err)
	}
	out, err := r.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, err
	}
	values, err := erc20.Unpack("totalSupply", out)
	if err != nil {
		return nil, fmt.Errorf("decode totalSupply: %w", err)
	}
	return asBigInt(values[0])
}

func (r *AaveReader) erc20BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := r.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, err
	}
	values, err := erc20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return asBigInt(values[0])
}
