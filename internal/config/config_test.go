package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MinAPYDelta != 0.5 {
		t.Fatalf("MinAPYDelta = %v, want 0.5", cfg.MinAPYDelta)
	}
	if cfg.PaybackMultiple != 3.0 {
		t.Fatalf("PaybackMultiple = %v, want 3.0", cfg.PaybackMultiple)
	}
	if cfg.HealthAlertThreshold != 1.05 {
		t.Fatalf("HealthAlertThreshold = %v, want 1.05", cfg.HealthAlertThreshold)
	}
	if len(cfg.MorphoMarkets) == 0 || len(cfg.AaveMarkets) == 0 {
		t.Fatalf("default market tables empty: morpho=%d aave=%d", len(cfg.MorphoMarkets), len(cfg.AaveMarkets))
	}
	if len(cfg.Tokens) == 0 {
		t.Fatal("default token table empty")
	}
	if cfg.MorphoAddress != DefaultMorphoAddress {
		t.Fatalf("MorphoAddress = %s, want default", cfg.MorphoAddress)
	}
}

func TestTokenLookupCaseInsensitive(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	upper, ok := cfg.Token("USDC")
	if !ok {
		t.Fatal("USDC not found")
	}
	lower, ok := cfg.Token("usdc")
	if !ok {
		t.Fatal("usdc not found")
	}
	if upper.Address != lower.Address {
		t.Fatalf("lookup differs by case: %s vs %s", upper.Address, lower.Address)
	}
}

func TestMarketLookup(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	first := cfg.MorphoMarkets[0]
	market, ok := cfg.Market("morpho", first.ID)
	if !ok {
		t.Fatalf("market %s not found", first.ID)
	}
	if market.Name != first.Name {
		t.Fatalf("market name = %s, want %s", market.Name, first.Name)
	}
	if _, ok := cfg.Market("morpho", "0xdoesnotexist"); ok {
		t.Fatal("unknown market id must not resolve")
	}
}
