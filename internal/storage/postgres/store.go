// Package postgres provides Postgres persistence for market history and
// agent events.
package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yieldscope/internal/model"
)

// Store writes snapshots and events through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func bigNumeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PutSnapshotBatch upserts one row per market per observation time.
func (s *Store) PutSnapshotBatch(ctx context.Context, snapshots []model.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO market_snapshots (
				protocol, market_id, name, supply_apy, borrow_apy, rewards_apy,
				utilization, total_supply, total_borrow, liquidity,
				risk, is_healthy, fetched_at, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
			ON CONFLICT (protocol, market_id, fetched_at)
			DO UPDATE SET
				supply_apy = EXCLUDED.supply_apy,
				borrow_apy = EXCLUDED.borrow_apy,
				rewards_apy = EXCLUDED.rewards_apy,
				utilization = EXCLUDED.utilization,
				total_supply = EXCLUDED.total_supply,
				total_borrow = EXCLUDED.total_borrow,
				liquidity = EXCLUDED.liquidity,
				risk = EXCLUDED.risk,
				is_healthy = EXCLUDED.is_healthy
		`,
			string(snap.Protocol),
			snap.MarketID,
			snap.Name,
			snap.SupplyAPY,
			snap.BorrowAPY,
			snap.RewardsAPY,
			snap.Utilization,
			bigNumeric(snap.TotalSupply),
			bigNumeric(snap.TotalBorrow),
			bigNumeric(snap.Liquidity),
			string(snap.UtilizationRisk),
			snap.IsHealthy,
			snap.FetchedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch inserts agent events, ignoring duplicate ids.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO agent_events (id, kind, user_id, message, occurred_at, created_at)
			VALUES ($1,$2,$3,$4,$5,now())
			ON CONFLICT (id) DO NOTHING
		`,
			ev.ID,
			string(ev.Kind),
			ev.UserID,
			ev.Message,
			ev.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
