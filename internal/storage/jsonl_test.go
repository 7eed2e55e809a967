package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yieldscope/internal/model"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		lines = append(lines, record)
	}
	return lines
}

func TestJsonlSnapshots(t *testing.T) {
	dir := t.TempDir()
	s := NewJsonlStorage(dir)

	snapshots := []model.MarketSnapshot{
		{
			Protocol:        model.ProtocolMorpho,
			MarketID:        "0xabc",
			Name:            "wstETH/USDC",
			SupplyAPY:       4.2,
			Utilization:     61.5,
			TotalSupply:     big.NewInt(1_000_000),
			TotalBorrow:     big.NewInt(615_000),
			UtilizationRisk: model.RiskMedium,
			IsHealthy:       true,
			FetchedAt:       time.Now().UTC(),
		},
	}
	if err := s.PutSnapshotBatch(context.Background(), snapshots); err != nil {
		t.Fatalf("PutSnapshotBatch: %v", err)
	}
	if err := s.PutSnapshotBatch(context.Background(), snapshots); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "snapshots.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (append semantics)", len(lines))
	}
	if lines[0]["total_supply"] != "1000000" {
		t.Fatalf("total_supply = %v, want string 1000000", lines[0]["total_supply"])
	}
	if lines[0]["liquidity"] != "0" {
		t.Fatalf("nil big.Int must serialize as 0, got %v", lines[0]["liquidity"])
	}
	if lines[0]["risk"] != "MEDIUM" {
		t.Fatalf("risk = %v, want MEDIUM", lines[0]["risk"])
	}
}

func TestJsonlEvents(t *testing.T) {
	dir := t.TempDir()
	s := NewJsonlStorage(dir)

	ev := model.NewEvent(model.EventHealthAlert, "alice", "health factor 1.01 below 1.05")
	if err := s.PutEventBatch(context.Background(), []model.Event{ev}); err != nil {
		t.Fatalf("PutEventBatch: %v", err)
	}
	if err := s.PutEventBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "events.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["kind"] != "health_alert" {
		t.Fatalf("kind = %v, want health_alert", lines[0]["kind"])
	}
	if lines[0]["user_id"] != "alice" {
		t.Fatalf("user_id = %v, want alice", lines[0]["user_id"])
	}
	if lines[0]["id"] == "" {
		t.Fatal("event id missing")
	}
}
