package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yieldscope/internal/agent"
	"yieldscope/internal/chain"
	"yieldscope/internal/config"
	"yieldscope/internal/exec"
	"yieldscope/internal/marketdata"
	"yieldscope/internal/optimizer"
	"yieldscope/internal/positions"
	"yieldscope/internal/protocol"
	"yieldscope/internal/storage"
	"yieldscope/internal/storage/postgres"
	"yieldscope/internal/wallet"
)

// stack bundles the wired components every subcommand needs.
type stack struct {
	cfg       config.Config
	client    *chain.Client
	markets   *marketdata.Cache
	positions *positions.Reader
	wallets   *wallet.FileRegistry
	finder    *optimizer.Finder
	executor  *optimizer.Executor
	logger    *zap.Logger
}

func buildStack(ctx context.Context, cmd *cobra.Command) (*stack, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	tokenMeta, err := protocol.NewTokenMetaCache()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("token cache: %w", err)
	}

	readers := []protocol.Reader{
		protocol.NewMorphoReader(client, &cfg, tokenMeta, logger),
		protocol.NewAaveReader(client, &cfg, tokenMeta, logger),
	}
	markets := marketdata.NewCache(cfg.CacheTTL, readers, logger)
	positionReader := positions.NewReader(readers, markets, logger)

	wallets, err := wallet.NewFileRegistry(cfg.WalletFile)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("wallet registry: %w", err)
	}

	var sender exec.Sender = wallet.DisabledSender{}
	if cfg.OperatorKey != "" {
		keySender, err := wallet.NewKeySender(ctx, client, cfg.OperatorKey)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("operator key: %w", err)
		}
		logger.Info("operator signing enabled", zap.String("from", keySender.From().Hex()))
		sender = keySender
	}

	execution := exec.NewYieldManager(client, wallets, sender, &cfg, logger)

	return &stack{
		cfg:       cfg,
		client:    client,
		markets:   markets,
		positions: positionReader,
		wallets:   wallets,
		finder:    optimizer.NewFinder(execution, cfg.MinAPYDelta, cfg.PaybackMultiple, logger),
		executor:  optimizer.NewExecutor(execution, logger),
		logger:    logger,
	}, nil
}

func (s *stack) close() {
	s.client.Close()
	s.logger.Sync()
}

func (s *stack) storage(ctx context.Context) (storage.Storage, func(), error) {
	if s.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, s.cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres storage: %w", err)
		}
		return store, store.Close, nil
	}
	if s.cfg.HistoryDir != "" {
		return storage.NewJsonlStorage(s.cfg.HistoryDir), func() {}, nil
	}
	return nil, func() {}, nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	store, closeStore, err := s.storage(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	orchestrator := agent.New(
		s.markets, s.positions, s.finder, s.executor, s.client, s.wallets, store,
		agent.Settings{
			MonitorInterval:      s.cfg.MonitorInterval,
			OptimizeInterval:     s.cfg.OptimizeInterval,
			DepositPollInterval:  s.cfg.DepositPollInterval,
			HealthAlertThreshold: s.cfg.HealthAlertThreshold,
			EventBuffer:          s.cfg.EventBuffer,
		},
		s.logger,
	)

	if err := orchestrator.Start(ctx); err != nil {
		return err
	}
	defer orchestrator.Stop()

	s.logger.Info("agent running",
		zap.String("rpc", s.cfg.RPCURL),
		zap.Int("users", len(s.wallets.Users())))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-orchestrator.Events():
			s.logger.Info("event",
				zap.String("kind", string(ev.Kind)),
				zap.String("user", ev.UserID),
				zap.String("message", ev.Message))
		}
	}
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	universe := s.markets.Universe(ctx)
	total := 0
	for _, proto := range s.markets.Protocols() {
		for _, snap := range universe[proto] {
			total++
			fmt.Printf("%-8s %-28s supply %6.2f%%  borrow %6.2f%%  util %6.2f%%  risk %-6s healthy %v\n",
				snap.Protocol, snap.Name, snap.SupplyAPY, snap.BorrowAPY,
				snap.Utilization, snap.UtilizationRisk, snap.IsHealthy)
		}
	}
	if total == 0 {
		return fmt.Errorf("no markets available")
	}
	return nil
}

func runPosition(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	addr, err := s.wallets.Address(userID)
	if err != nil {
		return err
	}

	portfolio, err := s.positions.Portfolio(ctx, addr)
	if err != nil {
		return err
	}

	if len(portfolio.Positions) == 0 {
		fmt.Printf("%s has no active positions\n", userID)
		return nil
	}
	for _, pos := range portfolio.Positions {
		supply := decimal.NewFromBigInt(pos.SupplyAmount, -int32(pos.Decimals))
		borrow := decimal.NewFromBigInt(pos.BorrowAmount, -int32(pos.Decimals))
		fmt.Printf("%-8s %-40s supply %s  borrow %s  apy %5.2f%%  hf %.4f\n",
			pos.Protocol, pos.MarketID, supply, borrow,
			pos.Metrics.SupplyAPY, pos.HealthFactor)
	}
	fmt.Printf("portfolio: supply %s  borrow %s  net apy %.2f%%  health factor %.4f\n",
		portfolio.TotalSupplyUSD, portfolio.TotalBorrowUSD, portfolio.NetAPY, portfolio.HealthFactor)
	return nil
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	execute, _ := cmd.Flags().GetBool("execute")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	addr, err := s.wallets.Address(userID)
	if err != nil {
		return err
	}
	userPositions, err := s.positions.All(ctx, addr)
	if err != nil {
		return err
	}
	if len(userPositions) == 0 {
		fmt.Printf("%s has no active positions\n", userID)
		return nil
	}

	universe := s.markets.Universe(ctx)
	for _, pos := range userPositions {
		result, err := s.finder.FindBest(ctx, userID, pos, universe)
		if err != nil {
			return err
		}
		if result == nil {
			fmt.Printf("%s: no better market\n", pos.MarketID)
			continue
		}

		verdict := "not profitable"
		if result.IsProfit {
			verdict = "profitable"
		}
		fmt.Printf("%s -> %s: +%.2f%% APY, gas %s wei, %s\n",
			pos.MarketID, result.SuggestedMarket.MarketID, result.APYDelta, result.GasCost, verdict)
		if result.GasEstimateDegraded {
			fmt.Println("  warning: gas estimate incomplete, cost may be understated")
		}

		if execute && result.IsProfit {
			if err := s.executor.Execute(ctx, userID, result); err != nil {
				return err
			}
			fmt.Println("  rebalance executed")
		}
	}
	return nil
}
