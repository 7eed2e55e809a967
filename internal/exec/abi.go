package exec

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const yieldManagerABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "_strategy", "type": "address"},
      {"internalType": "address[]", "name": "_tokens", "type": "address[]"},
      {"internalType": "uint256[]", "name": "_amounts", "type": "uint256[]"},
      {"internalType": "bytes", "name": "_additionalData", "type": "bytes"},
      {"internalType": "address", "name": "_for", "type": "address"}
    ],
    "name": "deposit",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "_strategy", "type": "address"},
      {"internalType": "address[]", "name": "_tokens", "type": "address[]"},
      {"internalType": "uint256[]", "name": "_amounts", "type": "uint256[]"},
      {"internalType": "bytes", "name": "_additionalData", "type": "bytes"},
      {"internalType": "address", "name": "_for", "type": "address"}
    ],
    "name": "withdraw",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "spender", "type": "address"}, {"name": "value", "type": "uint256"}], "name": "approve", "outputs": [{"type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	yieldManagerABI     abi.ABI
	yieldManagerABIOnce sync.Once
	yieldManagerABIErr  error
	erc20ABI            abi.ABI
	erc20ABIOnce        sync.Once
	erc20ABIErr         error
)

func YieldManagerABI() (abi.ABI, error) {
	yieldManagerABIOnce.Do(func() {
		yieldManagerABI, yieldManagerABIErr = abi.JSON(strings.NewReader(yieldManagerABIJSON))
	})
	return yieldManagerABI, yieldManagerABIErr
}

func approvalABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
