package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"yieldscope/internal/chain"
)

// DisabledSender rejects every send. It stands in when no operator key is
// configured so read and simulate paths keep working.
type DisabledSender struct{}

func (DisabledSender) SendTransaction(ctx context.Context, userID string, to common.Address, data []byte, gasLimit uint64) (string, error) {
	return "", fmt.Errorf("transaction signing is not configured, set YIELDSCOPE_OPERATOR_KEY")
}

// KeySender signs transactions with a single operator key. Per-user
// attribution happens inside the target contract's on-behalf-of parameter,
// so one signing key serves every registered user.
type KeySender struct {
	client  *chain.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// NewKeySender parses a hex private key and pins the chain id it will sign
// for.
func NewKeySender(ctx context.Context, client *chain.Client, hexKey string) (*KeySender, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("operator key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}
	return &KeySender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// From returns the operator's signing address.
func (s *KeySender) From() common.Address {
	return s.from
}

// SendTransaction signs and broadcasts a legacy transaction, returning its
// hash.
func (s *KeySender) SendTransaction(ctx context.Context, userID string, to common.Address, data []byte, gasLimit uint64) (string, error) {
	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("broadcast transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}
