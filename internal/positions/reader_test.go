package positions

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldscope/internal/marketdata"
	"yieldscope/internal/model"
	"yieldscope/internal/protocol"
)

type fakePositionReader struct {
	proto     model.Protocol
	ids       []string
	states    map[string]protocol.PositionState
	snapshots map[string]model.MarketSnapshot
	failing   map[string]bool
}

func (f *fakePositionReader) Protocol() model.Protocol { return f.proto }
func (f *fakePositionReader) MarketIDs() []string      { return f.ids }

func (f *fakePositionReader) FetchMarket(_ context.Context, marketID string) (model.MarketSnapshot, error) {
	snapshot, ok := f.snapshots[marketID]
	if !ok {
		return model.MarketSnapshot{}, errors.New("no snapshot")
	}
	return snapshot, nil
}

func (f *fakePositionReader) FetchPosition(_ context.Context, _ common.Address, marketID string) (protocol.PositionState, error) {
	if f.failing[marketID] {
		return protocol.PositionState{}, errors.New("rpc unavailable")
	}
	state, ok := f.states[marketID]
	if !ok {
		return protocol.PositionState{
			SupplyAssets: big.NewInt(0),
			BorrowAssets: big.NewInt(0),
		}, nil
	}
	return state, nil
}

var user = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func TestCheckExcludesEmptyPositions(t *testing.T) {
	reader := &fakePositionReader{
		proto: model.ProtocolMorpho,
		ids:   []string{"m1", "m2"},
		states: map[string]protocol.PositionState{
			"m1": {SupplyAssets: big.NewInt(0), BorrowAssets: big.NewInt(0)},
			"m2": {SupplyAssets: big.NewInt(1000), BorrowAssets: big.NewInt(400)},
		},
	}

	r := NewReader([]protocol.Reader{reader}, nil, nil)
	positions, err := r.Check(context.Background(), user, model.ProtocolMorpho, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].MarketID != "m2" {
		t.Fatalf("expected m2, got %s", positions[0].MarketID)
	}
	if math.Abs(positions[0].HealthFactor-2.5) > 1e-9 {
		t.Fatalf("health factor = %v, want 2.5", positions[0].HealthFactor)
	}
}

func TestCheckNoDebtReportsSentinel(t *testing.T) {
	reader := &fakePositionReader{
		proto: model.ProtocolMorpho,
		ids:   []string{"m1"},
		states: map[string]protocol.PositionState{
			"m1": {SupplyAssets: big.NewInt(5000), BorrowAssets: big.NewInt(0)},
		},
	}

	r := NewReader([]protocol.Reader{reader}, nil, nil)
	positions, err := r.Check(context.Background(), user, model.ProtocolMorpho, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].HealthFactor != model.HealthFactorMax {
		t.Fatalf("health factor = %v, want sentinel %v", positions[0].HealthFactor, model.HealthFactorMax)
	}
}

func TestCheckSkipsFailedMarkets(t *testing.T) {
	reader := &fakePositionReader{
		proto: model.ProtocolMorpho,
		ids:   []string{"m1", "m2"},
		states: map[string]protocol.PositionState{
			"m2": {SupplyAssets: big.NewInt(100), BorrowAssets: big.NewInt(10)},
		},
		failing: map[string]bool{"m1": true},
	}

	r := NewReader([]protocol.Reader{reader}, nil, nil)
	positions, err := r.Check(context.Background(), user, model.ProtocolMorpho, "")
	if err != nil {
		t.Fatalf("per-market failures must not fail the batch: %v", err)
	}
	if len(positions) != 1 || positions[0].MarketID != "m2" {
		t.Fatalf("expected only m2, got %+v", positions)
	}
}

func TestCheckExplicitMarketErrorPropagates(t *testing.T) {
	reader := &fakePositionReader{
		proto:   model.ProtocolMorpho,
		ids:     []string{"m1"},
		failing: map[string]bool{"m1": true},
	}

	r := NewReader([]protocol.Reader{reader}, nil, nil)
	if _, err := r.Check(context.Background(), user, model.ProtocolMorpho, "m1"); err == nil {
		t.Fatal("explicitly requested market must fail loudly, not return empty success")
	}
}

func TestCheckCarriesTokenDecimals(t *testing.T) {
	reader := &fakePositionReader{
		proto: model.ProtocolMorpho,
		ids:   []string{"m1"},
		states: map[string]protocol.PositionState{
			"m1": {SupplyAssets: big.NewInt(4_000_000), BorrowAssets: big.NewInt(0)},
		},
		snapshots: map[string]model.MarketSnapshot{
			"m1": {
				Protocol:          model.ProtocolMorpho,
				MarketID:          "m1",
				SupplyAPY:         5,
				LoanTokenDecimals: 6,
				FetchedAt:         time.Now(),
			},
		},
	}

	markets := marketdata.NewCache(time.Minute, []protocol.Reader{reader}, nil)
	r := NewReader([]protocol.Reader{reader}, markets, nil)

	positions, err := r.Check(context.Background(), user, model.ProtocolMorpho, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].Decimals != 6 {
		t.Fatalf("decimals = %d, want 6 from the market snapshot", positions[0].Decimals)
	}

	status := model.ComputePortfolio(positions)
	if status.TotalSupplyUSD.String() != "4" {
		t.Fatalf("total supply = %s, want 4 (4_000_000 base units at 6 decimals)", status.TotalSupplyUSD)
	}
}

func TestPortfolioMinHealthFactor(t *testing.T) {
	positions := []model.Position{
		{
			SupplyAmount: big.NewInt(1000),
			BorrowAmount: big.NewInt(100),
			HealthFactor: 10,
			Metrics:      model.PositionMetrics{SupplyAPY: 4},
		},
		{
			SupplyAmount: big.NewInt(3000),
			BorrowAmount: big.NewInt(2000),
			HealthFactor: 1.5,
			Metrics:      model.PositionMetrics{SupplyAPY: 8},
		},
	}

	status := model.ComputePortfolio(positions)
	if status.HealthFactor != 1.5 {
		t.Fatalf("portfolio health factor = %v, want the minimum 1.5", status.HealthFactor)
	}
	// (1000*4 + 3000*8) / 4000 = 7
	if math.Abs(status.NetAPY-7) > 1e-9 {
		t.Fatalf("net APY = %v, want 7", status.NetAPY)
	}
	if status.TotalSupplyUSD.String() != "4000" {
		t.Fatalf("total supply = %s, want 4000", status.TotalSupplyUSD)
	}
}

func TestPortfolioEmptyIsHealthy(t *testing.T) {
	status := model.ComputePortfolio(nil)
	if status.HealthFactor != model.HealthFactorMax {
		t.Fatalf("empty portfolio health factor = %v, want sentinel", status.HealthFactor)
	}
	if status.NetAPY != 0 {
		t.Fatalf("empty portfolio net APY = %v, want 0", status.NetAPY)
	}
}
