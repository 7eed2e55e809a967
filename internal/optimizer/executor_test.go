package optimizer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"yieldscope/internal/model"
)

func verdict(isProfit bool) *model.OptimizationResult {
	target := snapshot(model.ProtocolAave, "a-target", 6.0, 0, model.RiskLow, true)
	return &model.OptimizationResult{
		UserID:          "alice",
		CurrentPosition: position(10_000, 4.0),
		SuggestedMarket: &target,
		PotentialAPY:    6.0,
		APYDelta:        2.0,
		GasCost:         big.NewInt(5),
		IsProfit:        isProfit,
	}
}

func TestExecuteRejectsUnprofitable(t *testing.T) {
	exe := &fakeExecution{}
	e := NewExecutor(exe, nil)

	if err := e.Execute(context.Background(), "alice", verdict(false)); !errors.Is(err, ErrNotProfitable) {
		t.Fatalf("err = %v, want ErrNotProfitable", err)
	}
	if err := e.Execute(context.Background(), "alice", nil); !errors.Is(err, ErrNotProfitable) {
		t.Fatalf("nil verdict: err = %v, want ErrNotProfitable", err)
	}
	if exe.withdrawCalls != 0 || exe.supplyCalls != 0 {
		t.Fatalf("no transactions expected, got withdraw=%d supply=%d", exe.withdrawCalls, exe.supplyCalls)
	}
}

func TestExecuteWithdrawFailureStopsSequence(t *testing.T) {
	exe := &fakeExecution{
		withdrawResult: model.TxResult{Success: false, Reason: "insufficient shares"},
	}
	e := NewExecutor(exe, nil)

	err := e.Execute(context.Background(), "alice", verdict(true))
	if err == nil {
		t.Fatal("expected an error for a reverted withdraw")
	}
	var stranded *StrandedFundsError
	if errors.As(err, &stranded) {
		t.Fatalf("withdraw failure must not report stranded funds: %v", err)
	}
	if exe.supplyCalls != 0 {
		t.Fatalf("supply attempted %d times after failed withdraw, want 0", exe.supplyCalls)
	}
}

func TestExecuteSupplyFailureIsStrandedFunds(t *testing.T) {
	exe := &fakeExecution{
		withdrawResult: model.TxResult{Success: true, TxHash: "0xw"},
		supplyErr:      errors.New("nonce too low"),
	}
	e := NewExecutor(exe, nil)

	err := e.Execute(context.Background(), "alice", verdict(true))
	var stranded *StrandedFundsError
	if !errors.As(err, &stranded) {
		t.Fatalf("err = %v, want *StrandedFundsError", err)
	}
	if stranded.UserID != "alice" {
		t.Fatalf("stranded user = %s, want alice", stranded.UserID)
	}
	if stranded.FromMarket != "m-current" || stranded.ToMarket != "a-target" {
		t.Fatalf("stranded route = %s -> %s", stranded.FromMarket, stranded.ToMarket)
	}
	if stranded.Amount.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("stranded amount = %s, want 10000", stranded.Amount)
	}
}

func TestExecuteSuccess(t *testing.T) {
	exe := &fakeExecution{
		withdrawResult: model.TxResult{Success: true, TxHash: "0xw"},
		supplyResult:   model.TxResult{Success: true, TxHash: "0xs"},
	}
	e := NewExecutor(exe, nil)

	if err := e.Execute(context.Background(), "alice", verdict(true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exe.withdrawCalls != 1 || exe.supplyCalls != 1 {
		t.Fatalf("call counts withdraw=%d supply=%d, want 1/1", exe.withdrawCalls, exe.supplyCalls)
	}
}
