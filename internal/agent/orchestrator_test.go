package agent

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"yieldscope/internal/model"
)

type fakeMarkets struct {
	universe map[model.Protocol][]model.MarketSnapshot
	cleared  int
}

func (f *fakeMarkets) Universe(ctx context.Context) map[model.Protocol][]model.MarketSnapshot {
	return f.universe
}

func (f *fakeMarkets) Clear() { f.cleared++ }

type fakePositions struct {
	positions []model.Position
	portfolio model.PortfolioStatus
	err       error
}

func (f *fakePositions) All(ctx context.Context, user common.Address) ([]model.Position, error) {
	return f.positions, f.err
}

func (f *fakePositions) Portfolio(ctx context.Context, user common.Address) (model.PortfolioStatus, error) {
	return f.portfolio, f.err
}

type fakeFinder struct {
	result *model.OptimizationResult
	err    error
	calls  int
}

func (f *fakeFinder) FindBest(ctx context.Context, userID string, position model.Position, universe map[model.Protocol][]model.MarketSnapshot) (*model.OptimizationResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeRebalancer struct {
	err   error
	calls int
}

func (f *fakeRebalancer) Execute(ctx context.Context, userID string, opt *model.OptimizationResult) error {
	f.calls++
	return f.err
}

type fakeBalances struct {
	balances []*big.Int
	idx      int
}

func (f *fakeBalances) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if f.idx < len(f.balances) {
		b := f.balances[f.idx]
		f.idx++
		return b, nil
	}
	return f.balances[len(f.balances)-1], nil
}

type fakeRegistry struct {
	addrs map[string]common.Address
}

func (f *fakeRegistry) Address(userID string) (common.Address, error) {
	addr, ok := f.addrs[userID]
	if !ok {
		return common.Address{}, errors.New("unknown user")
	}
	return addr, nil
}

func (f *fakeRegistry) Users() []string {
	users := make([]string, 0, len(f.addrs))
	for userID := range f.addrs {
		users = append(users, userID)
	}
	return users
}

func testSettings() Settings {
	return Settings{
		MonitorInterval:      time.Hour,
		OptimizeInterval:     time.Hour,
		DepositPollInterval:  5 * time.Millisecond,
		HealthAlertThreshold: 1.05,
		EventBuffer:          16,
	}
}

func testOrchestrator(markets *fakeMarkets, positions *fakePositions, finder *fakeFinder, rebalancer *fakeRebalancer, balances *fakeBalances) *Orchestrator {
	registry := &fakeRegistry{addrs: map[string]common.Address{
		"alice": common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}}
	return New(markets, positions, finder, rebalancer, balances, registry, nil, testSettings(), nil)
}

func TestStartStopLifecycle(t *testing.T) {
	markets := &fakeMarkets{}
	o := testOrchestrator(markets, &fakePositions{}, &fakeFinder{}, &fakeRebalancer{}, &fakeBalances{balances: []*big.Int{big.NewInt(0)}})

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !o.Running() {
		t.Fatal("expected running state after Start")
	}
	if err := o.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	o.Stop()
	if o.Running() {
		t.Fatal("expected stopped state after Stop")
	}
	if markets.cleared != 1 {
		t.Fatalf("cache cleared %d times, want 1", markets.cleared)
	}
	if got := o.ActiveWatchers(); got != 0 {
		t.Fatalf("active watchers after stop = %d, want 0", got)
	}

	// Stop is idempotent.
	o.Stop()
	if markets.cleared != 1 {
		t.Fatalf("idempotent Stop cleared cache again (%d)", markets.cleared)
	}
}

func TestStopDuringInitialization(t *testing.T) {
	markets := &fakeMarkets{}
	o := testOrchestrator(markets, &fakePositions{}, &fakeFinder{}, &fakeRebalancer{}, &fakeBalances{balances: []*big.Int{big.NewInt(0)}})

	// A Stop that lands before startup finishes must still win.
	o.state.Store(stateInitializing)
	o.Stop()

	if o.Running() {
		t.Fatal("expected stopped state")
	}
	if markets.cleared != 1 {
		t.Fatalf("cache cleared %d times, want 1", markets.cleared)
	}
	o.Stop()
	if markets.cleared != 1 {
		t.Fatalf("second Stop cleared cache again (%d)", markets.cleared)
	}
}

func TestNewDefaultsSettings(t *testing.T) {
	o := New(&fakeMarkets{}, &fakePositions{}, &fakeFinder{}, &fakeRebalancer{},
		&fakeBalances{balances: []*big.Int{big.NewInt(0)}},
		&fakeRegistry{}, nil, Settings{}, nil)

	if o.settings.DepositPollInterval != 30*time.Second {
		t.Fatalf("deposit poll interval = %v, want 30s default", o.settings.DepositPollInterval)
	}
	if o.settings.EventBuffer != 64 {
		t.Fatalf("event buffer = %d, want 64 default", o.settings.EventBuffer)
	}
}

func TestOptimizeUserExecutesProfitableMove(t *testing.T) {
	target := model.MarketSnapshot{Protocol: model.ProtocolAave, MarketID: "a-1", SupplyAPY: 6}
	finder := &fakeFinder{result: &model.OptimizationResult{
		UserID:          "alice",
		CurrentPosition: model.Position{MarketID: "m-1", SupplyAmount: big.NewInt(1000)},
		SuggestedMarket: &target,
		APYDelta:        2,
		GasCost:         big.NewInt(1),
		IsProfit:        true,
	}}
	rebalancer := &fakeRebalancer{}
	positions := &fakePositions{positions: []model.Position{{MarketID: "m-1", SupplyAmount: big.NewInt(1000)}}}
	o := testOrchestrator(&fakeMarkets{}, positions, finder, rebalancer, &fakeBalances{balances: []*big.Int{big.NewInt(0)}})

	results, err := o.OptimizeUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("OptimizeUser: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if rebalancer.calls != 1 {
		t.Fatalf("rebalancer called %d times, want 1", rebalancer.calls)
	}

	kinds := drainKinds(o)
	if !containsKind(kinds, model.EventOptimizationFound) || !containsKind(kinds, model.EventOptimizationExecuted) {
		t.Fatalf("event kinds = %v, want found and executed", kinds)
	}
}

func TestOptimizeUserSkipsUnprofitable(t *testing.T) {
	target := model.MarketSnapshot{Protocol: model.ProtocolAave, MarketID: "a-1"}
	finder := &fakeFinder{result: &model.OptimizationResult{
		SuggestedMarket: &target,
		APYDelta:        1,
		GasCost:         big.NewInt(1_000_000),
		IsProfit:        false,
	}}
	rebalancer := &fakeRebalancer{}
	positions := &fakePositions{positions: []model.Position{{MarketID: "m-1", SupplyAmount: big.NewInt(1000)}}}
	o := testOrchestrator(&fakeMarkets{}, positions, finder, rebalancer, &fakeBalances{balances: []*big.Int{big.NewInt(0)}})

	if _, err := o.OptimizeUser(context.Background(), "alice"); err != nil {
		t.Fatalf("OptimizeUser: %v", err)
	}
	if rebalancer.calls != 0 {
		t.Fatalf("rebalancer called %d times for unprofitable verdict, want 0", rebalancer.calls)
	}
}

func TestDepositWatcherTriggersOptimization(t *testing.T) {
	finder := &fakeFinder{}
	positions := &fakePositions{positions: []model.Position{{MarketID: "m-1", SupplyAmount: big.NewInt(1000)}}}
	balances := &fakeBalances{balances: []*big.Int{big.NewInt(100), big.NewInt(500)}}
	o := testOrchestrator(&fakeMarkets{}, positions, finder, &fakeRebalancer{}, balances)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.WatchDeposits(ctx, "alice"); err != nil {
		t.Fatalf("WatchDeposits: %v", err)
	}
	if err := o.WatchDeposits(ctx, "alice"); err == nil {
		t.Fatal("duplicate watcher must be rejected")
	}

	deadline := time.After(2 * time.Second)
	for o.ActiveWatchers() > 0 {
		select {
		case <-deadline:
			t.Fatal("watcher did not retire after deposit")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if finder.calls == 0 {
		t.Fatal("expected optimization pass after deposit")
	}
	if !containsKind(drainKinds(o), model.EventDepositDetected) {
		t.Fatal("expected deposit_detected event")
	}
}

func TestMonitorEmitsHealthAlert(t *testing.T) {
	positions := &fakePositions{portfolio: model.PortfolioStatus{
		HealthFactor: 1.01,
		Positions:    []model.Position{{MarketID: "m-1"}},
	}}
	o := testOrchestrator(&fakeMarkets{}, positions, &fakeFinder{}, &fakeRebalancer{}, &fakeBalances{balances: []*big.Int{big.NewInt(0)}})

	o.monitorOnce(context.Background())

	kinds := drainKinds(o)
	if !containsKind(kinds, model.EventHealthAlert) {
		t.Fatalf("event kinds = %v, want health_alert", kinds)
	}
}

func drainKinds(o *Orchestrator) []model.EventKind {
	var kinds []model.EventKind
	for {
		select {
		case ev := <-o.Events():
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func containsKind(kinds []model.EventKind, kind model.EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
