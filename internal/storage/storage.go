package storage

import (
	"context"

	"yieldscope/internal/model"
)

// Storage defines a sink for observed market state and agent events.
type Storage interface {
	PutSnapshotBatch(ctx context.Context, snapshots []model.MarketSnapshot) error
	PutEventBatch(ctx context.Context, events []model.Event) error
}
