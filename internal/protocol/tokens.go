package protocol

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/common"

	"yieldscope/internal/chain"
	"yieldscope/internal/model"
)

// TokenMetaCache caches immutable ERC-20 metadata by address.
type TokenMetaCache struct {
	cache *ristretto.Cache
}

func NewTokenMetaCache() (*TokenMetaCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 12,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	return &TokenMetaCache{cache: cache}, nil
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	value, ok := c.cache.Get(address.Hex())
	if !ok {
		return model.TokenMeta{}, false
	}
	meta, ok := value.(model.TokenMeta)
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.cache.Set(address.Hex(), meta, 1)
	c.cache.Wait()
}

// FetchTokenMeta loads ERC-20 metadata via chain RPC, consulting the cache
// first. Token decimals and symbols never change, so entries never expire.
func FetchTokenMeta(ctx context.Context, client *chain.Client, token common.Address, cache *TokenMetaCache) (model.TokenMeta, error) {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta, nil
		}
	}
	if client == nil {
		return model.TokenMeta{}, fmt.Errorf("chain client is nil")
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	meta := model.TokenMeta{Address: token}

	data, err := erc20.Pack("decimals")
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("pack decimals: %w", err)
	}
	out, err := client.CallContract(ctx, token, data)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("call decimals: %w", err)
	}
	values, err := erc20.Unpack("decimals", out)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("decode decimals: %w", err)
	}
	if decimals, ok := values[0].(uint8); ok {
		meta.Decimals = decimals
	}

	data, err = erc20.Pack("symbol")
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("pack symbol: %w", err)
	}
	out, err = client.CallContract(ctx, token, data)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("call symbol: %w", err)
	}
	values, err = erc20.Unpack("symbol", out)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("decode symbol: %w", err)
	}
	if symbol, ok := values[0].(string); ok {
		meta.Symbol = symbol
	}

	if cache != nil {
		cache.Set(token, meta)
	}
	return meta, nil
}
