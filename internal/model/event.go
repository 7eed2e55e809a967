package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies an outbound event on the orchestrator queue.
type EventKind string

const (
	EventMarketAnalysis       EventKind = "market_analysis"
	EventHealthAlert          EventKind = "health_alert"
	EventWalletError          EventKind = "wallet_error"
	EventDepositDetected      EventKind = "deposit_detected"
	EventOptimizationFound    EventKind = "optimization_found"
	EventOptimizationExecuted EventKind = "optimization_executed"
	EventRebalanceFailed      EventKind = "rebalance_failed"
	// EventFundsStranded reports a withdraw that succeeded while the
	// follow-up supply failed: funds sit uninvested until the next pass
	// or a manual follow-up. Kept distinct from EventRebalanceFailed so
	// operators can detect the condition directly.
	EventFundsStranded EventKind = "funds_stranded"
)

// Event is one item on the outbound queue consumed by front ends. Exactly
// one payload field is set, matching the kind.
type Event struct {
	ID        string
	Kind      EventKind
	Timestamp time.Time
	UserID    string
	Message   string

	Snapshots    []MarketSnapshot
	Portfolio    *PortfolioStatus
	Optimization *OptimizationResult
}

// NewEvent builds an event with a fresh id and UTC timestamp.
func NewEvent(kind EventKind, userID, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Message:   message,
	}
}
