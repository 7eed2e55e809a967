package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yieldscope/internal/model"
)

// JsonlStorage appends snapshots and events as JSON lines under a directory,
// one file per record kind.
type JsonlStorage struct {
	dir string
	mu  sync.Mutex
}

func NewJsonlStorage(dir string) *JsonlStorage {
	return &JsonlStorage{dir: dir}
}

type snapshotRecord struct {
	Protocol    string    `json:"protocol"`
	MarketID    string    `json:"market_id"`
	Name        string    `json:"name"`
	SupplyAPY   float64   `json:"supply_apy"`
	BorrowAPY   float64   `json:"borrow_apy"`
	RewardsAPY  float64   `json:"rewards_apy"`
	Utilization float64   `json:"utilization"`
	TotalSupply string    `json:"total_supply"`
	TotalBorrow string    `json:"total_borrow"`
	Liquidity   string    `json:"liquidity"`
	Risk        string    `json:"risk"`
	IsHealthy   bool      `json:"is_healthy"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type eventRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PutSnapshotBatch appends market snapshots to snapshots.jsonl.
func (s *JsonlStorage) PutSnapshotBatch(ctx context.Context, snapshots []model.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	records := make([]any, 0, len(snapshots))
	for _, snap := range snapshots {
		records = append(records, snapshotRecord{
			Protocol:    string(snap.Protocol),
			MarketID:    snap.MarketID,
			Name:        snap.Name,
			SupplyAPY:   snap.SupplyAPY,
			BorrowAPY:   snap.BorrowAPY,
			RewardsAPY:  snap.RewardsAPY,
			Utilization: snap.Utilization,
			TotalSupply: bigString(snap.TotalSupply),
			TotalBorrow: bigString(snap.TotalBorrow),
			Liquidity:   bigString(snap.Liquidity),
			Risk:        string(snap.UtilizationRisk),
			IsHealthy:   snap.IsHealthy,
			FetchedAt:   snap.FetchedAt,
		})
	}
	return s.appendLines("snapshots.jsonl", records)
}

// PutEventBatch appends agent events to events.jsonl.
func (s *JsonlStorage) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]any, 0, len(events))
	for _, ev := range events {
		records = append(records, eventRecord{
			ID:        ev.ID,
			Kind:      string(ev.Kind),
			Timestamp: ev.Timestamp,
			UserID:    ev.UserID,
			Message:   ev.Message,
		})
	}
	return s.appendLines("events.jsonl", records)
}

func (s *JsonlStorage) appendLines(name string, records []any) error {
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
