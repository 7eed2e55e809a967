package risk

import (
	"math/big"
	"testing"

	"yieldscope/internal/model"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		utilization float64
		want        model.RiskTier
	}{
		{0, model.RiskLow},
		{49.9999, model.RiskLow},
		{50, model.RiskLow},
		{50.0001, model.RiskMedium},
		{79.9999, model.RiskMedium},
		{80, model.RiskMedium},
		{80.0001, model.RiskHigh},
		{100, model.RiskHigh},
	}

	for _, tc := range cases {
		if got := Classify(tc.utilization); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.utilization, got, tc.want)
		}
	}
}

func TestIsHealthyIndependentOfUtilization(t *testing.T) {
	cases := []struct {
		borrow, supply int64
		want           bool
	}{
		{0, 0, true},
		{99, 100, true},
		{100, 100, true},
		{101, 100, false},
	}

	for _, tc := range cases {
		got := IsHealthy(big.NewInt(tc.borrow), big.NewInt(tc.supply))
		if got != tc.want {
			t.Fatalf("IsHealthy(%d, %d) = %v, want %v", tc.borrow, tc.supply, got, tc.want)
		}
	}
}

func TestIsHealthyNil(t *testing.T) {
	if IsHealthy(nil, big.NewInt(1)) {
		t.Fatalf("nil borrow must not be healthy")
	}
	if IsHealthy(big.NewInt(1), nil) {
		t.Fatalf("nil supply must not be healthy")
	}
}
