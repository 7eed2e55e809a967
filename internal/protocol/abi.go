package protocol

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Morpho Blue views. Struct returns are declared flattened: all fields are
// static so the encoding is identical, and selectors depend on inputs only.
const morphoABIJSON = `[
  {
    "inputs": [{"internalType": "Id", "name": "id", "type": "bytes32"}],
    "name": "market",
    "outputs": [
      {"internalType": "uint128", "name": "totalSupplyAssets", "type": "uint128"},
      {"internalType": "uint128", "name": "totalSupplyShares", "type": "uint128"},
      {"internalType": "uint128", "name": "totalBorrowAssets", "type": "uint128"},
      {"internalType": "uint128", "name": "totalBorrowShares", "type": "uint128"},
      {"internalType": "uint128", "name": "lastUpdate", "type": "uint128"},
      {"internalType": "uint128", "name": "fee", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "Id", "name": "id", "type": "bytes32"},
      {"internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "position",
    "outputs": [
      {"internalType": "uint256", "name": "supplyShares", "type": "uint256"},
      {"internalType": "uint128", "name": "borrowShares", "type": "uint128"},
      {"internalType": "uint128", "name": "collateral", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "Id", "name": "id", "type": "bytes32"}],
    "name": "idToMarketParams",
    "outputs": [
      {"internalType": "address", "name": "loanToken", "type": "address"},
      {"internalType": "address", "name": "collateralToken", "type": "address"},
      {"internalType": "address", "name": "oracle", "type": "address"},
      {"internalType": "address", "name": "irm", "type": "address"},
      {"internalType": "uint256", "name": "lltv", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const morphoIRMABIJSON = `[
  {
    "inputs": [
      {
        "components": [
          {"internalType": "address", "name": "loanToken", "type": "address"},
          {"internalType": "address", "name": "collateralToken", "type": "address"},
          {"internalType": "address", "name": "oracle", "type": "address"},
          {"internalType": "address", "name": "irm", "type": "address"},
          {"internalType": "uint256", "name": "lltv", "type": "uint256"}
        ],
        "internalType": "struct MarketParams",
        "name": "marketParams",
        "type": "tuple"
      },
      {
        "components": [
          {"internalType": "uint128", "name": "totalSupplyAssets", "type": "uint128"},
          {"internalType": "uint128", "name": "totalSupplyShares", "type": "uint128"},
          {"internalType": "uint128", "name": "totalBorrowAssets", "type": "uint128"},
          {"internalType": "uint128", "name": "totalBorrowShares", "type": "uint128"},
          {"internalType": "uint128", "name": "lastUpdate", "type": "uint128"},
          {"internalType": "uint128", "name": "fee", "type": "uint128"}
        ],
        "internalType": "struct Market",
        "name": "market",
        "type": "tuple"
      }
    ],
    "name": "borrowRateView",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

// Aave V3 pool getReserveData, flattened the same way.
const aavePoolABIJSON = `[
  {
    "inputs": [{"internalType": "address", "name": "asset", "type": "address"}],
    "name": "getReserveData",
    "outputs": [
      {"internalType": "uint256", "name": "configuration", "type": "uint256"},
      {"internalType": "uint128", "name": "liquidityIndex", "type": "uint128"},
      {"internalType": "uint128", "name": "currentLiquidityRate", "type": "uint128"},
      {"internalType": "uint128", "name": "variableBorrowIndex", "type": "uint128"},
      {"internalType": "uint128", "name": "currentVariableBorrowRate", "type": "uint128"},
      {"internalType": "uint128", "name": "currentStableBorrowRate", "type": "uint128"},
      {"internalType": "uint40", "name": "lastUpdateTimestamp", "type": "uint40"},
      {"internalType": "uint16", "name": "id", "type": "uint16"},
      {"internalType": "address", "name": "aTokenAddress", "type": "address"},
      {"internalType": "address", "name": "stableDebtTokenAddress", "type": "address"},
      {"internalType": "address", "name": "variableDebtTokenAddress", "type": "address"},
      {"internalType": "address", "name": "interestRateStrategyAddress", "type": "address"},
      {"internalType": "uint128", "name": "accruedToTreasury", "type": "uint128"},
      {"internalType": "uint128", "name": "unbacked", "type": "uint128"},
      {"internalType": "uint128", "name": "isolationModeTotalDebt", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "spender", "type": "address"}, {"name": "value", "type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	morphoABI        abi.ABI
	morphoABIOnce    sync.Once
	morphoABIErr     error
	morphoIRMABI     abi.ABI
	morphoIRMABIOnce sync.Once
	morphoIRMABIErr  error
	aavePoolABI      abi.ABI
	aavePoolABIOnce  sync.Once
	aavePoolABIErr   error
	erc20ABI         abi.ABI
	erc20ABIOnce     sync.Once
	erc20ABIErr      error
)

func MorphoABI() (abi.ABI, error) {
	morphoABIOnce.Do(func() {
		morphoABI, morphoABIErr = abi.JSON(strings.NewReader(morphoABIJSON))
	})
	return morphoABI, morphoABIErr
}

func MorphoIRMABI() (abi.ABI, error) {
	morphoIRMABIOnce.Do(func() {
		morphoIRMABI, morphoIRMABIErr = abi.JSON(strings.NewReader(morphoIRMABIJSON))
	})
	return morphoIRMABI, morphoIRMABIErr
}

func AavePoolABI() (abi.ABI, error) {
	aavePoolABIOnce.Do(func() {
		aavePoolABI, aavePoolABIErr = abi.JSON(strings.NewReader(aavePoolABIJSON))
	})
	return aavePoolABI, aavePoolABIErr
}

func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
