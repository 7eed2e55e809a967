// Package agent runs the autonomous loop: scheduled market analysis, health
// monitoring, per-user optimization, and deposit watching, with outbound
// events on an explicit queue.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"yieldscope/internal/model"
	"yieldscope/internal/optimizer"
	"yieldscope/internal/storage"
	"yieldscope/internal/wallet"
)

// Orchestrator lifecycle states.
const (
	stateStopped int32 = iota
	stateInitializing
	stateRunning
)

// MarketSource provides the snapshot universe the loops read from.
type MarketSource interface {
	Universe(ctx context.Context) map[model.Protocol][]model.MarketSnapshot
	Clear()
}

// PositionSource reads user positions and portfolio aggregates.
type PositionSource interface {
	All(ctx context.Context, user common.Address) ([]model.Position, error)
	Portfolio(ctx context.Context, user common.Address) (model.PortfolioStatus, error)
}

// OpportunityFinder produces a profitability verdict for one position.
type OpportunityFinder interface {
	FindBest(ctx context.Context, userID string, position model.Position, universe map[model.Protocol][]model.MarketSnapshot) (*model.OptimizationResult, error)
}

// Rebalancer carries out a profitable verdict.
type Rebalancer interface {
	Execute(ctx context.Context, userID string, opt *model.OptimizationResult) error
}

// BalanceReader reads a wallet's native balance, used for deposit detection.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Settings carries the loop tunables.
type Settings struct {
	MonitorInterval      time.Duration
	OptimizeInterval     time.Duration
	DepositPollInterval  time.Duration
	HealthAlertThreshold float64
	EventBuffer          int
}

// Orchestrator owns the scheduler, the deposit watchers, and the event queue.
type Orchestrator struct {
	markets   MarketSource
	positions PositionSource
	finder    OpportunityFinder
	executor  Rebalancer
	balances  BalanceReader
	wallets   wallet.Registry
	store     storage.Storage
	settings  Settings
	logger    *zap.Logger

	state  atomic.Int32
	cron   *cron.Cron
	events chan model.Event

	cancel context.CancelFunc

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
}

// New wires an orchestrator. store may be nil to disable persistence.
func New(markets MarketSource, positions PositionSource, finder OpportunityFinder, executor Rebalancer, balances BalanceReader, wallets wallet.Registry, store storage.Storage, settings Settings, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.EventBuffer <= 0 {
		settings.EventBuffer = 64
	}
	if settings.DepositPollInterval <= 0 {
		settings.DepositPollInterval = 30 * time.Second
	}
	return &Orchestrator{
		markets:   markets,
		positions: positions,
		finder:    finder,
		executor:  executor,
		balances:  balances,
		wallets:   wallets,
		store:     store,
		settings:  settings,
		logger:    logger,
		events:    make(chan model.Event, settings.EventBuffer),
		watchers:  make(map[string]context.CancelFunc),
	}
}

// Events exposes the outbound queue. The channel stays open for the life of
// the orchestrator; consumers select on it alongside their own contexts.
func (o *Orchestrator) Events() <-chan model.Event {
	return o.events
}

// Running reports whether the scheduled loops are active.
func (o *Orchestrator) Running() bool {
	return o.state.Load() == stateRunning
}

// Start brings up the scheduled loops and a deposit watcher per registered
// user. Starting an already running orchestrator is an error.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.state.CompareAndSwap(stateStopped, stateInitializing) {
		return errors.New("agent is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	logger := newCronLogger(o.logger)
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)

	o.mu.Lock()
	o.cancel = cancel
	o.cron = scheduler
	o.mu.Unlock()

	scheduler.Schedule(cron.Every(o.settings.MonitorInterval), cron.FuncJob(func() {
		o.monitorOnce(ctx)
	}))
	scheduler.Schedule(cron.Every(o.settings.OptimizeInterval), cron.FuncJob(func() {
		o.optimizeOnce(ctx)
	}))
	scheduler.Start()

	for _, userID := range o.wallets.Users() {
		if err := o.WatchDeposits(ctx, userID); err != nil {
			o.logger.Warn("deposit watcher not started",
				zap.String("user", userID), zap.Error(err))
		}
	}

	// Stop can land while startup is still in flight; finish its cleanup
	// here instead of going live.
	if !o.state.CompareAndSwap(stateInitializing, stateRunning) {
		o.shutdown()
		return errors.New("agent stopped during startup")
	}
	o.logger.Info("agent started",
		zap.Duration("monitor_interval", o.settings.MonitorInterval),
		zap.Duration("optimize_interval", o.settings.OptimizeInterval))
	return nil
}

// Stop halts the loops and watchers and drops cached market data. It also
// takes effect against an orchestrator still starting up. Stopping a stopped
// orchestrator is a no-op.
func (o *Orchestrator) Stop() {
	if !o.state.CompareAndSwap(stateRunning, stateStopped) &&
		!o.state.CompareAndSwap(stateInitializing, stateStopped) {
		return
	}
	o.shutdown()
	o.logger.Info("agent stopped")
}

func (o *Orchestrator) shutdown() {
	o.mu.Lock()
	scheduler := o.cron
	cancel := o.cancel
	watchers := o.watchers
	o.watchers = make(map[string]context.CancelFunc)
	o.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	if cancel != nil {
		cancel()
	}
	for _, cancelWatcher := range watchers {
		cancelWatcher()
	}
	o.markets.Clear()
}

// ActiveWatchers reports the number of live deposit watchers.
func (o *Orchestrator) ActiveWatchers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.watchers)
}

// AnalyzeMarkets refreshes the snapshot universe, persists it, and emits a
// market_analysis event carrying every snapshot.
func (o *Orchestrator) AnalyzeMarkets(ctx context.Context) ([]model.MarketSnapshot, error) {
	universe := o.markets.Universe(ctx)
	var snapshots []model.MarketSnapshot
	for _, list := range universe {
		snapshots = append(snapshots, list...)
	}
	if len(snapshots) == 0 {
		return nil, errors.New("no markets available")
	}

	if o.store != nil {
		if err := o.store.PutSnapshotBatch(ctx, snapshots); err != nil {
			o.logger.Warn("snapshot persistence failed", zap.Error(err))
		}
	}

	ev := model.NewEvent(model.EventMarketAnalysis, "", fmt.Sprintf("analyzed %d markets", len(snapshots)))
	ev.Snapshots = snapshots
	o.emit(ctx, ev)
	return snapshots, nil
}

// CheckPosition returns the user's nonzero positions across all protocols.
func (o *Orchestrator) CheckPosition(ctx context.Context, userID string) ([]model.Position, error) {
	addr, err := o.wallets.Address(userID)
	if err != nil {
		ev := model.NewEvent(model.EventWalletError, userID, err.Error())
		o.emit(ctx, ev)
		return nil, err
	}
	return o.positions.All(ctx, addr)
}

// Portfolio returns the user's aggregated portfolio view.
func (o *Orchestrator) Portfolio(ctx context.Context, userID string) (model.PortfolioStatus, error) {
	addr, err := o.wallets.Address(userID)
	if err != nil {
		ev := model.NewEvent(model.EventWalletError, userID, err.Error())
		o.emit(ctx, ev)
		return model.PortfolioStatus{}, err
	}
	return o.positions.Portfolio(ctx, addr)
}

// OptimizeUser evaluates every position the user holds and executes the
// profitable moves. It returns the verdicts found, including unprofitable
// ones, so callers can display the full picture.
func (o *Orchestrator) OptimizeUser(ctx context.Context, userID string) ([]*model.OptimizationResult, error) {
	positions, err := o.CheckPosition(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}

	universe := o.markets.Universe(ctx)
	var results []*model.OptimizationResult
	for _, position := range positions {
		result, err := o.finder.FindBest(ctx, userID, position, universe)
		if err != nil {
			o.logger.Warn("optimization scan failed",
				zap.String("user", userID),
				zap.String("market", position.MarketID),
				zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}
		results = append(results, result)

		ev := model.NewEvent(model.EventOptimizationFound, userID,
			fmt.Sprintf("%s -> %s: +%.2f%% APY", position.MarketID, result.SuggestedMarket.MarketID, result.APYDelta))
		ev.Optimization = result
		o.emit(ctx, ev)

		if !result.IsProfit {
			continue
		}
		o.executeRebalance(ctx, userID, result)
	}
	return results, nil
}

func (o *Orchestrator) executeRebalance(ctx context.Context, userID string, result *model.OptimizationResult) {
	err := o.executor.Execute(ctx, userID, result)
	if err == nil {
		ev := model.NewEvent(model.EventOptimizationExecuted, userID,
			fmt.Sprintf("moved %s to %s", result.CurrentPosition.MarketID, result.SuggestedMarket.MarketID))
		ev.Optimization = result
		o.emit(ctx, ev)
		return
	}

	var stranded *optimizer.StrandedFundsError
	if errors.As(err, &stranded) {
		o.logger.Error("funds stranded", zap.String("user", userID), zap.Error(err))
		ev := model.NewEvent(model.EventFundsStranded, userID, stranded.Error())
		ev.Optimization = result
		o.emit(ctx, ev)
		return
	}

	o.logger.Error("rebalance failed", zap.String("user", userID), zap.Error(err))
	ev := model.NewEvent(model.EventRebalanceFailed, userID, err.Error())
	ev.Optimization = result
	o.emit(ctx, ev)
}

// WatchDeposits starts a poller on the user's wallet balance. The watcher
// runs one optimization pass when the balance grows, then retires itself.
// At most one watcher runs per user.
func (o *Orchestrator) WatchDeposits(ctx context.Context, userID string) error {
	addr, err := o.wallets.Address(userID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if _, exists := o.watchers[userID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("deposit watcher already running for user %s", userID)
	}
	watchCtx, cancel := context.WithCancel(ctx)
	o.watchers[userID] = cancel
	o.mu.Unlock()

	go o.watchDeposits(watchCtx, userID, addr)
	return nil
}

func (o *Orchestrator) watchDeposits(ctx context.Context, userID string, addr common.Address) {
	defer func() {
		o.mu.Lock()
		if cancel, ok := o.watchers[userID]; ok {
			cancel()
			delete(o.watchers, userID)
		}
		o.mu.Unlock()
	}()

	var last *big.Int
	ticker := time.NewTicker(o.settings.DepositPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balance, err := o.balances.BalanceAt(ctx, addr)
			if err != nil {
				o.logger.Warn("balance poll failed",
					zap.String("user", userID), zap.Error(err))
				continue
			}
			if last != nil && balance.Cmp(last) > 0 {
				delta := new(big.Int).Sub(balance, last)
				o.logger.Info("deposit detected",
					zap.String("user", userID),
					zap.String("amount", delta.String()))
				ev := model.NewEvent(model.EventDepositDetected, userID,
					fmt.Sprintf("balance grew by %s", delta))
				o.emit(ctx, ev)
				if _, err := o.OptimizeUser(ctx, userID); err != nil {
					o.logger.Warn("post-deposit optimization failed",
						zap.String("user", userID), zap.Error(err))
				}
				return
			}
			last = balance
		}
	}
}

func (o *Orchestrator) monitorOnce(ctx context.Context) {
	for _, userID := range o.wallets.Users() {
		portfolio, err := o.Portfolio(ctx, userID)
		if err != nil {
			o.logger.Warn("health check failed",
				zap.String("user", userID), zap.Error(err))
			continue
		}
		if len(portfolio.Positions) == 0 {
			continue
		}
		if portfolio.HealthFactor < o.settings.HealthAlertThreshold {
			o.logger.Warn("health factor below threshold",
				zap.String("user", userID),
				zap.Float64("health_factor", portfolio.HealthFactor))
			ev := model.NewEvent(model.EventHealthAlert, userID,
				fmt.Sprintf("health factor %.4f below %.2f", portfolio.HealthFactor, o.settings.HealthAlertThreshold))
			ev.Portfolio = &portfolio
			o.emit(ctx, ev)
		}
	}
}

func (o *Orchestrator) optimizeOnce(ctx context.Context) {
	if _, err := o.AnalyzeMarkets(ctx); err != nil {
		o.logger.Warn("market analysis failed", zap.Error(err))
		return
	}
	for _, userID := range o.wallets.Users() {
		if _, err := o.OptimizeUser(ctx, userID); err != nil {
			o.logger.Warn("scheduled optimization failed",
				zap.String("user", userID), zap.Error(err))
		}
	}
}

// emit enqueues an event without blocking the loops. A full queue drops the
// event after logging it; persistence still sees every event.
func (o *Orchestrator) emit(ctx context.Context, ev model.Event) {
	if o.store != nil {
		if err := o.store.PutEventBatch(ctx, []model.Event{ev}); err != nil {
			o.logger.Warn("event persistence failed",
				zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
	select {
	case o.events <- ev:
	default:
		o.logger.Warn("event queue full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("user", ev.UserID))
	}
}
