package protocol

import (
	"math"
	"math/big"
)

const (
	wadDecimals = 18
	rayDecimals = 27

	secondsPerYear = 365.25 * 24 * 3600

	// Morpho share accounting offsets.
	virtualShares = 1e6
	virtualAssets = 1
)

// WadToPercent converts a wad-scaled ratio to a percentage (1e18 -> 100).
func WadToPercent(wad *big.Int) float64 {
	if wad == nil {
		return 0
	}
	value, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wad),
		big.NewFloat(math.Pow10(wadDecimals)),
	).Float64()
	return value * 100
}

// PerSecondWadToAPY converts a per-second wad borrow rate to an annual
// percentage using the linear approximation.
func PerSecondWadToAPY(rate *big.Int) float64 {
	if rate == nil || rate.Sign() == 0 {
		return 0
	}
	perSecond, _ := new(big.Float).Quo(
		new(big.Float).SetInt(rate),
		big.NewFloat(math.Pow10(wadDecimals)),
	).Float64()
	return perSecond * secondsPerYear * 100
}

// RayToAPY converts an Aave ray-scaled annual rate to a percentage.
func RayToAPY(ray *big.Int) float64 {
	if ray == nil || ray.Sign() == 0 {
		return 0
	}
	value, _ := new(big.Float).Quo(
		new(big.Float).SetInt(ray),
		big.NewFloat(math.Pow10(rayDecimals)),
	).Float64()
	return value * 100
}

// Utilization returns borrow/supply as a percentage, zero when supply is zero.
func Utilization(totalBorrow, totalSupply *big.Int) float64 {
	if totalBorrow == nil || totalSupply == nil || totalSupply.Sign() == 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(totalBorrow),
		new(big.Float).SetInt(totalSupply),
	).Float64()
	return ratio * 100
}

// SharesToAssets converts Morpho shares to underlying assets at the market's
// current accrual state, rounding down, with Morpho's virtual share offsets.
func SharesToAssets(shares, totalAssets, totalShares *big.Int) *big.Int {
	if shares == nil || shares.Sign() == 0 {
		return big.NewInt(0)
	}
	assets := new(big.Int).Add(totalAssets, big.NewInt(virtualAssets))
	denom := new(big.Int).Add(totalShares, big.NewInt(virtualShares))

	out := new(big.Int).Mul(shares, assets)
	return out.Quo(out, denom)
}
