package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/workerpool"
)

// HistorySource is the read side of the ledger the detector scans.
type HistorySource interface {
	AccountIDs() []string
	// HistoryFrom returns a snapshot of the account's records after the first
	// offset entries.
	HistoryFrom(accountID string, offset int) ([]domain.Transaction, error)
}

// ScanReport summarises one Monitor call.
type ScanReport struct {
	Mode      ScanMode      `json:"mode"`
	Accounts  int           `json:"accounts"`
	Evaluated int           `json:"evaluated"`
	Flags     []domain.Flag `json:"flags"`
}

type accountState struct {
	mu       sync.Mutex
	velocity velocityState
	cursor   int
}

// Detector classifies transactions with the large-amount and velocity rules
// and keeps the blacklist. Its state lives for the lifetime of the value.
type Detector struct {
	rules   Rules
	mode    ScanMode
	workers int
	logger  *slog.Logger
	nowFn   func() time.Time

	mu        sync.RWMutex
	accounts  map[string]*accountState
	blacklist map[string]struct{}

	flagsMu sync.Mutex
	flags   []domain.Flag
}

// NewDetector builds a detector; zero-valued options fall back to defaults.
func NewDetector(opts Options) *Detector {
	rules := opts.Rules
	defaults := DefaultRules()
	if !rules.LargeAmount.IsPositive() {
		rules.LargeAmount = defaults.LargeAmount
	}
	if rules.VelocityWindow <= 0 {
		rules.VelocityWindow = defaults.VelocityWindow
	}
	if rules.MaxBurst <= 0 {
		rules.MaxBurst = defaults.MaxBurst
	}
	mode := opts.Mode
	if mode == "" {
		mode = ScanIncremental
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Detector{
		rules:     rules,
		mode:      mode,
		workers:   opts.Workers,
		logger:    logger,
		nowFn:     nowFn,
		accounts:  make(map[string]*accountState),
		blacklist: make(map[string]struct{}),
	}
}

func (d *Detector) Rules() Rules { return d.rules }

func (d *Detector) Mode() ScanMode { return d.mode }

func (d *Detector) state(accountID string) *accountState {
	d.mu.RLock()
	st, ok := d.accounts[accountID]
	d.mu.RUnlock()
	if ok {
		return st
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok = d.accounts[accountID]; ok {
		return st
	}
	st = &accountState{}
	d.accounts[accountID] = st
	return st
}

// FlagTransaction runs one transaction through both rules and records any
// resulting flags. The velocity state of tx's source account advances, so a
// transaction must not be fed here and also be picked up by an incremental scan.
func (d *Detector) FlagTransaction(tx domain.Transaction) []domain.Flag {
	st := d.state(tx.SourceAccountID)
	st.mu.Lock()
	flags := d.evaluateLocked(st, tx)
	st.mu.Unlock()

	d.record(flags)
	return flags
}

func (d *Detector) evaluateLocked(st *accountState, tx domain.Transaction) []domain.Flag {
	var flags []domain.Flag
	now := d.nowFn()

	if tx.Amount.GreaterThan(d.rules.LargeAmount) {
		flags = append(flags, domain.Flag{
			Transaction: tx,
			Reason:      domain.FlagLargeAmount,
			FlaggedAt:   now,
		})
	}

	st.velocity = st.velocity.next(tx.Timestamp, d.rules.VelocityWindow)
	if st.velocity.breached(d.rules.MaxBurst) {
		flags = append(flags, domain.Flag{
			Transaction: tx,
			Reason:      domain.FlagRapidVelocity,
			BurstCount:  st.velocity.count,
			FlaggedAt:   now,
		})
	}
	return flags
}

func (d *Detector) record(flags []domain.Flag) {
	if len(flags) == 0 {
		return
	}
	d.flagsMu.Lock()
	d.flags = append(d.flags, flags...)
	d.flagsMu.Unlock()

	for _, f := range flags {
		d.logger.Warn("transaction flagged",
			"account", f.AccountID(),
			"transaction", f.Transaction.ID,
			"reason", string(f.Reason),
			"amount", f.Transaction.Amount.String(),
			"burst", f.BurstCount,
		)
	}
}

// Monitor scans every account of source. Accounts are scanned in parallel;
// records of one account are always evaluated in history order.
func (d *Detector) Monitor(ctx context.Context, source HistorySource) (ScanReport, error) {
	ids := source.AccountIDs()
	perAccount := make([][]domain.Flag, len(ids))
	evaluated := make([]int, len(ids))

	err := workerpool.Run(ctx, d.workers, len(ids), func(idx int) error {
		flags, n, err := d.scanAccount(source, ids[idx])
		if err != nil {
			return fmt.Errorf("scan account %s: %w", ids[idx], err)
		}
		perAccount[idx] = flags
		evaluated[idx] = n
		return nil
	})

	report := ScanReport{Mode: d.mode, Accounts: len(ids)}
	for i := range ids {
		report.Evaluated += evaluated[i]
		report.Flags = append(report.Flags, perAccount[i]...)
	}
	d.record(report.Flags)

	d.logger.Debug("fraud scan complete",
		"mode", string(d.mode),
		"accounts", report.Accounts,
		"evaluated", report.Evaluated,
		"flags", len(report.Flags),
	)
	return report, err
}

func (d *Detector) scanAccount(source HistorySource, accountID string) ([]domain.Flag, int, error) {
	st := d.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	offset := st.cursor
	if d.mode == ScanRescan {
		offset = 0
	}
	txs, err := source.HistoryFrom(accountID, offset)
	if err != nil {
		return nil, 0, err
	}

	var flags []domain.Flag
	for _, tx := range txs {
		flags = append(flags, d.evaluateLocked(st, tx)...)
	}
	st.cursor = offset + len(txs)
	return flags, len(txs), nil
}

// BlockAccount adds accountID to the blacklist.
func (d *Detector) BlockAccount(accountID string) {
	d.mu.Lock()
	d.blacklist[accountID] = struct{}{}
	d.mu.Unlock()
	d.logger.Info("account blacklisted", "account", accountID)
}

// UnblockAccount removes accountID from the blacklist and reports whether it was present.
func (d *Detector) UnblockAccount(accountID string) bool {
	d.mu.Lock()
	_, ok := d.blacklist[accountID]
	delete(d.blacklist, accountID)
	d.mu.Unlock()
	if ok {
		d.logger.Info("account removed from blacklist", "account", accountID)
	}
	return ok
}

func (d *Detector) IsBlocked(accountID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.blacklist[accountID]
	return ok
}

// Blacklist returns the blacklisted ids in ascending order.
func (d *Detector) Blacklist() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.blacklist))
	for id := range d.blacklist {
		out = append(out, id)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

// CheckAllowed fails with ErrAccountBlocked for blacklisted accounts. It has
// the shape of a ledger account guard.
func (d *Detector) CheckAllowed(accountID string) error {
	if d.IsBlocked(accountID) {
		return fmt.Errorf("account %s: %w", accountID, ErrAccountBlocked)
	}
	return nil
}

// Flags returns a copy of every flag raised so far, oldest first.
func (d *Detector) Flags() []domain.Flag {
	d.flagsMu.Lock()
	defer d.flagsMu.Unlock()
	return append([]domain.Flag(nil), d.flags...)
}

// FlagsFor returns the flags raised against one account.
func (d *Detector) FlagsFor(accountID string) []domain.Flag {
	d.flagsMu.Lock()
	defer d.flagsMu.Unlock()
	var out []domain.Flag
	for _, f := range d.flags {
		if f.AccountID() == accountID {
			out = append(out, f)
		}
	}
	return out
}
