// Package marketdata caches market snapshots with a fixed TTL. Entries are
// replaced whole on refresh; readers always see a fully-formed snapshot.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"yieldscope/internal/model"
	"yieldscope/internal/protocol"
)

// Cache serves market snapshots, refreshing entries older than the TTL.
type Cache struct {
	ttl     time.Duration
	readers map[model.Protocol]protocol.Reader
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]model.MarketSnapshot
}

func NewCache(ttl time.Duration, readers []protocol.Reader, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	byProtocol := make(map[model.Protocol]protocol.Reader, len(readers))
	for _, reader := range readers {
		byProtocol[reader.Protocol()] = reader
	}
	return &Cache{
		ttl:     ttl,
		readers: byProtocol,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]model.MarketSnapshot),
	}
}

// Protocols lists the protocols the cache can serve, in stable order.
func (c *Cache) Protocols() []model.Protocol {
	out := make([]model.Protocol, 0, len(c.readers))
	for _, proto := range []model.Protocol{model.ProtocolMorpho, model.ProtocolAave} {
		if _, ok := c.readers[proto]; ok {
			out = append(out, proto)
		}
	}
	return out
}

// Get returns the cached snapshot when younger than the TTL, fetching fresh
// data otherwise.
func (c *Cache) Get(ctx context.Context, proto model.Protocol, marketID string) (model.MarketSnapshot, error) {
	key := string(proto) + ":" + marketID

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.FetchedAt) < c.ttl {
		return entry, nil
	}

	reader, ok := c.readers[proto]
	if !ok {
		return model.MarketSnapshot{}, fmt.Errorf("no reader for protocol %s", proto)
	}

	snapshot, err := reader.FetchMarket(ctx, marketID)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	c.mu.Lock()
	c.entries[key] = snapshot
	c.mu.Unlock()

	return snapshot, nil
}

// GetAll refreshes every configured market for a protocol. Individual fetch
// failures are logged and omitted; the caller receives the markets that
// could be read.
func (c *Cache) GetAll(ctx context.Context, proto model.Protocol) ([]model.MarketSnapshot, error) {
	reader, ok := c.readers[proto]
	if !ok {
		return nil, fmt.Errorf("no reader for protocol %s", proto)
	}

	ids := reader.MarketIDs()
	snapshots := make([]model.MarketSnapshot, 0, len(ids))
	for _, marketID := range ids {
		snapshot, err := c.Get(ctx, proto, marketID)
		if err != nil {
			c.logger.Warn("market fetch failed",
				zap.String("protocol", string(proto)),
				zap.String("market", marketID),
				zap.Error(err))
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Universe refreshes all protocols, tolerating whole-protocol failures.
func (c *Cache) Universe(ctx context.Context) map[model.Protocol][]model.MarketSnapshot {
	universe := make(map[model.Protocol][]model.MarketSnapshot, len(c.readers))
	for _, proto := range c.Protocols() {
		snapshots, err := c.GetAll(ctx, proto)
		if err != nil {
			c.logger.Warn("protocol analysis failed",
				zap.String("protocol", string(proto)), zap.Error(err))
			continue
		}
		universe[proto] = snapshots
	}
	return universe
}

// Clear drops all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]model.MarketSnapshot)
	c.mu.Unlock()
}
