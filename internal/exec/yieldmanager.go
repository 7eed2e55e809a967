package exec

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"yieldscope/internal/chain"
	"yieldscope/internal/config"
	"yieldscope/internal/model"
)

// AddressBook resolves a user id to their wallet address.
type AddressBook interface {
	Address(userID string) (common.Address, error)
}

// YieldManager drives the yield-manager contract: withdraws through the
// per-protocol strategy, and approve-then-deposit for supplies.
type YieldManager struct {
	client   *chain.Client
	wallets  AddressBook
	sender   Sender
	cfg      *config.Config
	contract common.Address
	logger   *zap.Logger
}

func NewYieldManager(client *chain.Client, wallets AddressBook, sender Sender, cfg *config.Config, logger *zap.Logger) *YieldManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YieldManager{
		client:   client,
		wallets:  wallets,
		sender:   sender,
		cfg:      cfg,
		contract: common.HexToAddress(cfg.YieldManagerAddr),
		logger:   logger,
	}
}

func (y *YieldManager) strategy(proto model.Protocol) (common.Address, error) {
	switch proto {
	case model.ProtocolMorpho:
		return common.HexToAddress(y.cfg.MorphoStrategyAddr), nil
	case model.ProtocolAave:
		return common.HexToAddress(y.cfg.AaveStrategyAddr), nil
	default:
		return common.Address{}, fmt.Errorf("no strategy for protocol %s", proto)
	}
}

func (y *YieldManager) loanToken(proto model.Protocol, marketID string) (common.Address, error) {
	market, ok := y.cfg.Market(string(proto), marketID)
	if !ok {
		return common.Address{}, fmt.Errorf("unknown %s market %s", proto, marketID)
	}
	token, ok := y.cfg.Token(market.LoanToken)
	if !ok {
		return common.Address{}, fmt.Errorf("token %s not configured", market.LoanToken)
	}
	return common.HexToAddress(token.Address), nil
}

func (y *YieldManager) calldata(action string, proto model.Protocol, marketID string, amount *big.Int, user common.Address) ([]byte, error) {
	strategy, err := y.strategy(proto)
	if err != nil {
		return nil, err
	}
	token, err := y.loanToken(proto, marketID)
	if err != nil {
		return nil, err
	}

	ymABI, err := YieldManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse yield manager abi: %w", err)
	}

	// The strategy contracts expect 32 bytes of additional data; none of
	// the configured strategies consume it.
	additionalData := make([]byte, 32)
	data, err := ymABI.Pack(action, strategy, []common.Address{token}, []*big.Int{amount}, additionalData, user)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", action, err)
	}
	return data, nil
}

func (y *YieldManager) simulate(ctx context.Context, action, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.Simulation, error) {
	user, err := y.wallets.Address(userID)
	if err != nil {
		return model.Simulation{}, fmt.Errorf("resolve wallet: %w", err)
	}
	data, err := y.calldata(action, proto, marketID, amount, user)
	if err != nil {
		return model.Simulation{}, err
	}
	gas, err := y.client.EstimateGas(ctx, user, y.contract, data)
	if err != nil {
		return model.Simulation{}, fmt.Errorf("estimate %s gas: %w", action, err)
	}
	return model.Simulation{Success: true, GasEstimate: gas}, nil
}

func (y *YieldManager) SimulateWithdraw(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.Simulation, error) {
	return y.simulate(ctx, "withdraw", userID, proto, marketID, amount)
}

func (y *YieldManager) SimulateSupply(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.Simulation, error) {
	return y.simulate(ctx, "deposit", userID, proto, marketID, amount)
}

func (y *YieldManager) execute(ctx context.Context, action, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.TxResult, error) {
	user, err := y.wallets.Address(userID)
	if err != nil {
		return model.TxResult{}, fmt.Errorf("resolve wallet: %w", err)
	}
	data, err := y.calldata(action, proto, marketID, amount, user)
	if err != nil {
		return model.TxResult{}, err
	}

	gas, err := y.client.EstimateGas(ctx, user, y.contract, data)
	if err != nil {
		return model.TxResult{Success: false, Reason: fmt.Sprintf("%s would revert: %v", action, err)}, nil
	}

	txHash, err := y.sender.SendTransaction(ctx, userID, y.contract, data, gas+gas/5)
	if err != nil {
		return model.TxResult{Success: false, Reason: fmt.Sprintf("%s transaction failed: %v", action, err)}, nil
	}

	y.logger.Info("transaction sent",
		zap.String("action", action),
		zap.String("user", userID),
		zap.String("market", marketID),
		zap.String("tx", txHash))
	return model.TxResult{Success: true, TxHash: txHash}, nil
}

func (y *YieldManager) ExecuteWithdraw(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.TxResult, error) {
	return y.execute(ctx, "withdraw", userID, proto, marketID, amount)
}

// ExecuteSupply approves the yield manager when the current allowance is
// insufficient and then deposits.
func (y *YieldManager) ExecuteSupply(ctx context.Context, userID string, proto model.Protocol, marketID string, amount *big.Int) (model.TxResult, error) {
	user, err := y.wallets.Address(userID)
	if err != nil {
		return model.TxResult{}, fmt.Errorf("resolve wallet: %w", err)
	}
	token, err := y.loanToken(proto, marketID)
	if err != nil {
		return model.TxResult{}, err
	}

	if err := y.ensureAllowance(ctx, userID, user, token, amount); err != nil {
		return model.TxResult{Success: false, Reason: fmt.Sprintf("approval failed: %v", err)}, nil
	}

	return y.execute(ctx, "deposit", userID, proto, marketID, amount)
}

// ensureAllowance is idempotent: a sufficient existing allowance skips the
// approval transaction entirely.
func (y *YieldManager) ensureAllowance(ctx context.Context, userID string, user, token common.Address, amount *big.Int) error {
	erc20, err := approvalABI()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}

	data, err := erc20.Pack("allowance", user, y.contract)
	if err != nil {
		return fmt.Errorf("pack allowance: %w", err)
	}
	out, err := y.client.CallContract(ctx, token, data)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	values, err := erc20.Unpack("allowance", out)
	if err != nil {
		return fmt.Errorf("decode allowance: %w", err)
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance type %T", values[0])
	}

	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	approveData, err := erc20.Pack("approve", y.contract, amount)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	gas, err := y.client.EstimateGas(ctx, user, token, approveData)
	if err != nil {
		return fmt.Errorf("estimate approve gas: %w", err)
	}
	txHash, err := y.sender.SendTransaction(ctx, userID, token, approveData, gas+gas/5)
	if err != nil {
		return fmt.Errorf("send approve: %w", err)
	}

	y.logger.Info("approval sent", zap.String("user", userID), zap.String("tx", txHash))
	return nil
}

func (y *YieldManager) GasPrice(ctx context.Context) (*big.Int, error) {
	return y.client.SuggestGasPrice(ctx)
}
