package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vanshika/ledgerwatch/internal/workerpool"
)

// ReplayClock is a settable time source. Installing it on the ledger lets a
// replay stamp each record with the operation's own time.
type ReplayClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewReplayClock(start time.Time) *ReplayClock {
	return &ReplayClock{now: start}
}

func (c *ReplayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock; a zero time is ignored.
func (c *ReplayClock) Set(t time.Time) {
	if t.IsZero() {
		return
	}
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// BulkLoader seeds customers and accounts concurrently and replays operations.
type BulkLoader struct {
	service *BankingService
	workers int
	clock   *ReplayClock
}

// NewBulkLoader creates a loader with the provided concurrency. clock may be
// nil, in which case operations are stamped by whatever clock the ledger uses.
func NewBulkLoader(service *BankingService, workers int, clock *ReplayClock) *BulkLoader {
	if workers <= 0 {
		workers = 4
	}
	return &BulkLoader{service: service, workers: workers, clock: clock}
}

// SeedCustomers registers customers concurrently.
func (bl *BulkLoader) SeedCustomers(ctx context.Context, customers []CustomerInput) error {
	return workerpool.Run(ctx, bl.workers, len(customers), func(idx int) error {
		_, err := bl.service.CreateCustomer(ctx, customers[idx])
		return err
	})
}

// SeedAccounts opens accounts concurrently. Opening balances are credited as
// deposits, so the follow-up scans run too.
func (bl *BulkLoader) SeedAccounts(ctx context.Context, accounts []AccountInput) error {
	return workerpool.Run(ctx, bl.workers, len(accounts), func(idx int) error {
		_, _, err := bl.service.OpenAccount(ctx, accounts[idx])
		return err
	})
}

// Replay applies the workload: customers, then accounts, then every operation
// strictly in order. Operation failures are counted, not fatal; seeding
// failures and context cancellation are.
func (bl *BulkLoader) Replay(ctx context.Context, w Workload) (ReplaySummary, error) {
	if err := bl.SeedCustomers(ctx, w.Customers); err != nil {
		return ReplaySummary{}, fmt.Errorf("seed customers: %w", err)
	}
	if err := bl.SeedAccounts(ctx, w.Accounts); err != nil {
		return ReplaySummary{}, fmt.Errorf("seed accounts: %w", err)
	}

	var summary ReplaySummary
	for i, op := range w.Operations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if bl.clock != nil {
			bl.clock.Set(op.At)
		}
		res, err := bl.Apply(ctx, op)
		if err != nil {
			summary.Rejected++
			summary.Errors = append(summary.Errors, fmt.Sprintf("op %d (%s %s): %v", i, op.Kind, op.AccountID, err))
			continue
		}
		summary.Applied++
		summary.Flags = append(summary.Flags, res.Flags...)
	}
	return summary, nil
}

// Apply runs a single operation through the service.
func (bl *BulkLoader) Apply(ctx context.Context, op Operation) (MutationResult, error) {
	switch op.Kind {
	case OpDeposit:
		return bl.service.Deposit(ctx, op.AccountID, op.Amount)
	case OpWithdraw:
		return bl.service.Withdraw(ctx, op.AccountID, op.Amount)
	case OpTransfer:
		return bl.service.Transfer(ctx, TransferInput{
			SourceAccountID:      op.AccountID,
			DestinationAccountID: op.Destination,
			Amount:               op.Amount,
		})
	case OpInterest:
		return bl.service.ApplyInterest(ctx, op.AccountID)
	default:
		return MutationResult{}, fmt.Errorf("%w: unknown operation kind %q", ErrInvalidInput, op.Kind)
	}
}
