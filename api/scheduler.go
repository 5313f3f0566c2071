/*
scheduler.go - Background ledger consistency checker

PURPOSE:
  Periodically replays every account's ledger against its stored
  balance-after snapshots and cross-checks each card's materialized
  available limit against its unpaid invoice totals. A mismatch means a
  write path broke an invariant; it is logged loudly but never "repaired"
  automatically - the ledger is the source of truth and repairs are a
  human decision.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Full scan per tick; account ledgers are small enough that replay
    cost is negligible
  - Findings are logged, never mutated

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the checker is active (default: true)

USAGE:
  checker := NewConsistencyChecker(store, logger)
  checker.Start()
  // ... later
  checker.Stop()

SEE ALSO:
  - ledger/replay.go: VerifyAccount
  - finance/invoice.go: RecomputeAvailableLimit
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// ConsistencyChecker periodically verifies ledger invariants.
type ConsistencyChecker struct {
	Store         finance.TxStore
	Log           *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewConsistencyChecker creates a new checker.
func NewConsistencyChecker(store finance.TxStore, log *slog.Logger) *ConsistencyChecker {
	return &ConsistencyChecker{
		Store:         store,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the checker.
func (cc *ConsistencyChecker) Start() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if !cc.Enabled {
		cc.Log.Info("consistency checker disabled, not starting")
		return
	}

	cc.ticker = time.NewTicker(cc.CheckInterval)
	cc.wg.Add(1)

	go cc.run()

	cc.Log.Info("consistency checker started", "interval", cc.CheckInterval)
}

// Stop stops the checker.
func (cc *ConsistencyChecker) Stop() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.ticker != nil {
		cc.ticker.Stop()
		close(cc.stop)
		cc.wg.Wait()
		cc.Log.Info("consistency checker stopped")
	}
}

func (cc *ConsistencyChecker) run() {
	defer cc.wg.Done()

	// Run immediately on start
	cc.CheckNow()

	for {
		select {
		case <-cc.ticker.C:
			cc.CheckNow()
		case <-cc.stop:
			return
		}
	}
}

// CheckNow runs one full verification pass (also used by tests/admin).
func (cc *ConsistencyChecker) CheckNow() {
	ctx := context.Background()

	accounts, err := cc.Store.ListAccounts(ctx)
	if err != nil {
		cc.Log.Error("consistency check: listing accounts failed", "err", err)
		return
	}

	mismatches := 0
	for _, a := range accounts {
		if err := ledger.VerifyAccount(ctx, cc.Store, a.ID); err != nil {
			mismatches++
			cc.Log.Error("ledger replay mismatch",
				"account_id", a.ID, "account", a.Name, "err", err)
		}
	}

	cards, err := cc.Store.ListCards(ctx)
	if err != nil {
		cc.Log.Error("consistency check: listing cards failed", "err", err)
		return
	}
	for _, c := range cards {
		want, err := finance.RecomputeAvailableLimit(ctx, cc.Store, c.ID)
		if err != nil {
			cc.Log.Error("consistency check: recomputing limit failed",
				"card_id", c.ID, "err", err)
			continue
		}
		if !want.Equal(c.AvailableLimit) {
			mismatches++
			cc.Log.Error("card available-limit drift",
				"card_id", c.ID, "card", c.Name,
				"stored", c.AvailableLimit, "recomputed", want)
		}
	}

	if mismatches == 0 {
		cc.Log.Debug("consistency check passed",
			"accounts", len(accounts), "cards", len(cards))
	}
}
