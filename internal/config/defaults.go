package config

// Base mainnet deployment addresses.
const (
	DefaultMorphoAddress         = "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"
	DefaultAavePoolAddress       = "0xA238Dd80C259a72e81d7e4664a9801593F98d1c5"
	DefaultYieldManagerAddress   = "0x90Cae48cEC3595Cd1A6a9D806679EEE50F364979"
	DefaultMorphoStrategyAddress = "0x9bBF97fE8CF3faE8d58915878c9C1eb1892C46F2"
	DefaultAaveStrategyAddress   = "0x9C80FE3Abc89d865Fe307707047D3d57414cD395"

	adaptiveCurveIRM = "0x46415998764C29aB2a25CbeA6254146D50D22687"
)

// DefaultMorphoMarkets returns the built-in USDC-loan Morpho Blue markets on
// Base.
func DefaultMorphoMarkets() []MarketConfig {
	return []MarketConfig{
		{
			Name:            "ezETH-USDC",
			ID:              "0xf24417ee06adc0b0836cf0dbec3ba56c1059f62f53a55990a38356d42fa75fa2",
			CollateralToken: "ezETH",
			LoanToken:       "USDC",
			LLTV:            77,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "cbETH-USDC",
			ID:              "0xe73d71cacb1a11ce1033966787e21b85573b8b8a3936bbd7d83b2546a1077c26",
			CollateralToken: "cbETH",
			LoanToken:       "USDC",
			LLTV:            86,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "AERO-USDC",
			ID:              "0xe63d3f30d872e49e86cf06b2ffab5aa016f26095e560cb8d6486f9a5f774631e",
			CollateralToken: "AERO",
			LoanToken:       "USDC",
			LLTV:            77,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "rETH-USDC",
			ID:              "0xdb0bc9f10a174f29a345c5f30a719933f71ccea7a2a75a632a281929bba1b535",
			CollateralToken: "rETH",
			LoanToken:       "USDC",
			LLTV:            86,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "wstETH-USDC",
			ID:              "0xa066f3893b780833699043f824e5bb88b8df039886f524f62b9a1ac83cb7f1f0",
			CollateralToken: "wstETH",
			LoanToken:       "USDC",
			LLTV:            86,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "WETH-USDC",
			ID:              "0x8793cf302b8ffd655ab97bd1c695dbd967807e8367a65cb2f4edaf1380ba1bda",
			CollateralToken: "WETH",
			LoanToken:       "USDC",
			LLTV:            86,
			IRM:             adaptiveCurveIRM,
		},
		{
			Name:            "weETH-USDC",
			ID:              "0x6a331b22b56c9c0ee32a1a7d6f852d2c682ea8b27a1b0f99a9c484a37a951eb7",
			CollateralToken: "weETH",
			LoanToken:       "USDC",
			LLTV:            77,
			IRM:             adaptiveCurveIRM,
		},
	}
}

// DefaultAaveMarkets returns the built-in Aave V3 reserves on Base.
func DefaultAaveMarkets() []MarketConfig {
	return []MarketConfig{
		{
			Name:              "aave-USDC",
			ID:                "aave-usdc",
			CollateralToken:   "USDC",
			LoanToken:         "USDC",
			LLTV:              75,
			AToken:            "0x4e65fE4DbA92790696d040ac24Aa414708F5c0AB",
			VariableDebtToken: "0x59dca05b6c26dbd64b5381374aAaC5CD05644C28",
		},
		{
			Name:              "aave-WETH",
			ID:                "aave-weth",
			CollateralToken:   "WETH",
			LoanToken:         "WETH",
			LLTV:              80,
			AToken:            "0xD4a0e0b9149BCee3C920d2E00b5dE09138fd8bb7",
			VariableDebtToken: "0x24e6e0795b3c7c71D965fCc4f371803d1c1DcA1E",
		},
	}
}

// DefaultTokens returns the built-in Base mainnet token table.
func DefaultTokens() []TokenConfig {
	return []TokenConfig{
		{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
		{Symbol: "wstETH", Address: "0xc1CBa3fCea344f92D9239c08C0568f6F2F0ee452", Decimals: 18},
		{Symbol: "cbETH", Address: "0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22", Decimals: 18},
		{Symbol: "rETH", Address: "0xB6fe221Fe9EeF5aBa221c348bA20A1Bf5e73624c", Decimals: 18},
		{Symbol: "ezETH", Address: "0x2416092f143378750bb29b79eD961ab195CcEea5", Decimals: 18},
		{Symbol: "weETH", Address: "0x04C0599Ae5A44757c0af6F9eC3b93da8976c150A", Decimals: 18},
		{Symbol: "AERO", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631", Decimals: 18},
	}
}
