package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "yieldscope",
		Short:        "Base lending yield agent",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "Base RPC URL")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the autonomous agent loops",
		RunE:  runAgent,
	}
	runCmd.Flags().Duration("monitor-interval", 5*time.Minute, "position health check interval")
	runCmd.Flags().Duration("optimize-interval", 10*time.Minute, "optimization pass interval")
	runCmd.Flags().Duration("deposit-poll-interval", 30*time.Second, "deposit watcher poll interval")
	runCmd.Flags().Duration("cache-ttl", 5*time.Minute, "market snapshot cache TTL")
	runCmd.Flags().String("wallet-file", "./data/wallets.json", "wallet registry JSON path")
	runCmd.Flags().String("history-dir", "", "directory for JSONL history output")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for history storage")
	root.AddCommand(runCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Fetch and print every configured market",
		RunE:  runAnalyze,
	}
	root.AddCommand(analyzeCmd)

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Show a user's positions and portfolio",
		RunE:  runPosition,
	}
	positionCmd.Flags().String("user", "", "user id from the wallet registry")
	positionCmd.Flags().String("wallet-file", "./data/wallets.json", "wallet registry JSON path")
	root.AddCommand(positionCmd)

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run one optimization pass for a user",
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().String("user", "", "user id from the wallet registry")
	optimizeCmd.Flags().String("wallet-file", "./data/wallets.json", "wallet registry JSON path")
	optimizeCmd.Flags().Bool("execute", false, "execute profitable moves instead of only reporting")
	root.AddCommand(optimizeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
