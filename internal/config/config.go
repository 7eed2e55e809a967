package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TokenConfig describes one ERC-20 the engine knows about.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals int    `mapstructure:"decimals"`
}

// MarketConfig describes one configured lending market. IRM applies to
// Morpho markets; AToken and VariableDebtToken apply to Aave reserves.
type MarketConfig struct {
	Name              string  `mapstructure:"name"`
	ID                string  `mapstructure:"id"`
	CollateralToken   string  `mapstructure:"collateral-token"`
	LoanToken         string  `mapstructure:"loan-token"`
	LLTV              float64 `mapstructure:"lltv"`
	IRM               string  `mapstructure:"irm"`
	AToken            string  `mapstructure:"atoken"`
	VariableDebtToken string  `mapstructure:"variable-debt-token"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL   string
	LogLevel string

	MorphoAddress      string
	AavePoolAddress    string
	YieldManagerAddr   string
	MorphoStrategyAddr string
	AaveStrategyAddr   string

	MorphoMarkets []MarketConfig
	AaveMarkets   []MarketConfig
	Tokens        []TokenConfig

	MinAPYDelta          float64
	PaybackMultiple      float64
	HealthAlertThreshold float64

	CacheTTL            time.Duration
	MonitorInterval     time.Duration
	OptimizeInterval    time.Duration
	DepositPollInterval time.Duration

	MaxRetries   int
	RetryBackoff time.Duration

	WalletFile  string
	HistoryDir  string
	PGDSN       string
	EventBuffer int

	// OperatorKey is read from YIELDSCOPE_OPERATOR_KEY or the config
	// file, never from a flag.
	OperatorKey string
}

// Load merges config file, environment variables, and flags into Config.
// Markets and tokens default to the built-in Base mainnet tables and can be
// replaced wholesale by the config file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("YIELDSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("morpho-address", DefaultMorphoAddress)
	v.SetDefault("aave-pool", DefaultAavePoolAddress)
	v.SetDefault("yield-manager", DefaultYieldManagerAddress)
	v.SetDefault("morpho-strategy", DefaultMorphoStrategyAddress)
	v.SetDefault("aave-strategy", DefaultAaveStrategyAddress)
	v.SetDefault("min-apy-delta", 0.5)
	v.SetDefault("payback-multiple", 3.0)
	v.SetDefault("health-alert-threshold", 1.05)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("monitor-interval", 5*time.Minute)
	v.SetDefault("optimize-interval", 10*time.Minute)
	v.SetDefault("deposit-poll-interval", 30*time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("wallet-file", "./data/wallets.json")
	v.SetDefault("history-dir", "")
	v.SetDefault("event-buffer", 64)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:               v.GetString("rpc"),
		LogLevel:             v.GetString("log-level"),
		MorphoAddress:        v.GetString("morpho-address"),
		AavePoolAddress:      v.GetString("aave-pool"),
		YieldManagerAddr:     v.GetString("yield-manager"),
		MorphoStrategyAddr:   v.GetString("morpho-strategy"),
		AaveStrategyAddr:     v.GetString("aave-strategy"),
		MorphoMarkets:        DefaultMorphoMarkets(),
		AaveMarkets:          DefaultAaveMarkets(),
		Tokens:               DefaultTokens(),
		MinAPYDelta:          v.GetFloat64("min-apy-delta"),
		PaybackMultiple:      v.GetFloat64("payback-multiple"),
		HealthAlertThreshold: v.GetFloat64("health-alert-threshold"),
		CacheTTL:             v.GetDuration("cache-ttl"),
		MonitorInterval:      v.GetDuration("monitor-interval"),
		OptimizeInterval:     v.GetDuration("optimize-interval"),
		DepositPollInterval:  v.GetDuration("deposit-poll-interval"),
		MaxRetries:           v.GetInt("max-retries"),
		RetryBackoff:         v.GetDuration("retry-backoff"),
		WalletFile:           v.GetString("wallet-file"),
		HistoryDir:           v.GetString("history-dir"),
		PGDSN:                v.GetString("pg-dsn"),
		EventBuffer:          v.GetInt("event-buffer"),
		OperatorKey:          v.GetString("operator-key"),
	}

	if v.IsSet("morpho-markets") {
		if err := v.UnmarshalKey("morpho-markets", &cfg.MorphoMarkets); err != nil {
			return Config{}, fmt.Errorf("parse morpho markets: %w", err)
		}
	}
	if v.IsSet("aave-markets") {
		if err := v.UnmarshalKey("aave-markets", &cfg.AaveMarkets); err != nil {
			return Config{}, fmt.Errorf("parse aave markets: %w", err)
		}
	}
	if v.IsSet("tokens") {
		if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
			return Config{}, fmt.Errorf("parse tokens: %w", err)
		}
	}

	return cfg, nil
}

// Token looks up a configured token by symbol, case-insensitively.
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	for _, token := range c.Tokens {
		if strings.EqualFold(token.Symbol, symbol) {
			return token, true
		}
	}
	return TokenConfig{}, false
}

// Market looks up a configured market by protocol-scoped id.
func (c *Config) Market(protocol string, id string) (MarketConfig, bool) {
	markets := c.MorphoMarkets
	if strings.EqualFold(protocol, "aave") {
		markets = c.AaveMarkets
	}
	for _, market := range markets {
		if strings.EqualFold(market.ID, id) {
			return market, true
		}
	}
	return MarketConfig{}, false
}
