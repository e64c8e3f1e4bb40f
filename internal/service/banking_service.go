package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/fraud"
	"github.com/vanshika/ledgerwatch/internal/ledger"
	"github.com/vanshika/ledgerwatch/internal/repository"
)

// ErrJournalDisabled is returned by reads that need the graph journal when none is configured.
var ErrJournalDisabled = errors.New("graph journal is not configured")

// Journal is the storage contract the service mirrors ledger state into.
type Journal interface {
	UpsertCustomer(ctx context.Context, c domain.Customer) error
	UpsertAccount(ctx context.Context, a domain.AccountSnapshot) error
	RecordActivity(ctx context.Context, act repository.Activity) error
	RecordFlag(ctx context.Context, f domain.Flag) error
	MarkBlocked(ctx context.Context, accountID string, blocked bool, at time.Time) error
	Counterparties(ctx context.Context, accountID string) ([]repository.Counterparty, error)
}

// BankingService runs caller operations against the ledger, scans for fraud
// after every mutation and mirrors the outcome into the journal.
type BankingService struct {
	ledger         *ledger.Ledger
	detector       *fraud.Detector
	journal        Journal
	logger         *slog.Logger
	journalTimeout time.Duration
	autoScan       bool
	nowFn          func() time.Time
}

// NewBankingService wires a service. A nil logger falls back to slog.Default.
func NewBankingService(deps Dependencies, logger *slog.Logger) *BankingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BankingService{
		ledger:         deps.Ledger,
		detector:       deps.Detector,
		journal:        deps.Journal,
		logger:         logger,
		journalTimeout: 5 * time.Second,
		autoScan:       true,
		nowFn:          time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *BankingService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// WithJournalTimeout bounds each journal write.
func (s *BankingService) WithJournalTimeout(d time.Duration) {
	if d > 0 {
		s.journalTimeout = d
	}
}

// WithAutoScan toggles the fraud scan that follows each mutation.
func (s *BankingService) WithAutoScan(enabled bool) {
	s.autoScan = enabled
}

func (s *BankingService) Ledger() *ledger.Ledger { return s.ledger }

func (s *BankingService) Detector() *fraud.Detector { return s.detector }

// CreateCustomer registers a customer.
func (s *BankingService) CreateCustomer(ctx context.Context, in CustomerInput) (domain.Customer, error) {
	id, err := normalizeID("customer id", in.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	c, err := s.ledger.AddCustomer(id, sanitizeString(in.Name))
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.Info("customer created", "customer", c.ID)
	s.journalWrite(ctx, "upsert customer", func(ctx context.Context, j Journal) error {
		return j.UpsertCustomer(ctx, c)
	})
	return c, nil
}

func (s *BankingService) GetCustomer(id string) (domain.Customer, error) {
	return s.ledger.Customer(id)
}

func (s *BankingService) ListCustomers() []domain.Customer {
	return s.ledger.Customers()
}

// OpenAccount opens an account for an existing customer. An opening balance
// is a deposit and goes through the fraud scan like any other.
func (s *BankingService) OpenAccount(ctx context.Context, in AccountInput) (domain.AccountSnapshot, MutationResult, error) {
	params, err := accountParams(in)
	if err != nil {
		return domain.AccountSnapshot{}, MutationResult{}, err
	}
	snap, err := s.ledger.OpenAccount(params)
	if err != nil {
		return domain.AccountSnapshot{}, MutationResult{}, err
	}
	s.logger.Info("account opened", "account", snap.ID, "customer", snap.CustomerID, "kind", string(snap.Kind))

	history, err := s.ledger.History(snap.ID)
	if err != nil {
		return domain.AccountSnapshot{}, MutationResult{}, err
	}
	res := s.afterMutation(ctx, history, snap.ID)
	if len(history) == 0 {
		s.journalWrite(ctx, "upsert account", func(ctx context.Context, j Journal) error {
			return j.UpsertAccount(ctx, snap)
		})
	}
	return snap, res, nil
}

func accountParams(in AccountInput) (ledger.OpenAccountParams, error) {
	kind, err := domain.ParseAccountKind(in.Kind)
	if err != nil {
		return ledger.OpenAccountParams{}, fmt.Errorf("%w: %w", ledger.ErrInvalidAccountKind, err)
	}
	id, err := normalizeID("account id", in.ID)
	if err != nil {
		return ledger.OpenAccountParams{}, err
	}
	customerID, err := normalizeID("customer id", in.CustomerID)
	if err != nil {
		return ledger.OpenAccountParams{}, err
	}
	rate, err := parseOptionalAmount("interest rate", in.InterestRate)
	if err != nil {
		return ledger.OpenAccountParams{}, err
	}
	overdraft, err := parseOptionalAmount("overdraft limit", in.OverdraftLimit)
	if err != nil {
		return ledger.OpenAccountParams{}, err
	}
	opening := decimal.Zero
	if in.OpeningBalance != "" {
		if opening, err = parseAmount("opening balance", in.OpeningBalance); err != nil {
			return ledger.OpenAccountParams{}, err
		}
	}
	return ledger.OpenAccountParams{
		ID:             id,
		CustomerID:     customerID,
		Kind:           kind,
		InterestRate:   rate,
		OverdraftLimit: overdraft,
		OpeningBalance: opening,
	}, nil
}

func (s *BankingService) GetAccount(id string) (domain.AccountSnapshot, error) {
	acct, err := s.ledger.Account(id)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return acct.Snapshot(), nil
}

func (s *BankingService) ListAccounts() []domain.AccountSnapshot {
	return s.ledger.Accounts()
}

// Deposit credits an account.
func (s *BankingService) Deposit(ctx context.Context, accountID, rawAmount string) (MutationResult, error) {
	amount, err := parseAmount("amount", rawAmount)
	if err != nil {
		return MutationResult{}, err
	}
	tx, err := s.ledger.Deposit(accountID, amount)
	if err != nil {
		s.logRejected("deposit", accountID, amount, err)
		return MutationResult{}, err
	}
	s.logger.Info("deposit recorded", "account", accountID, "amount", amount.String(), "transaction", tx.ID)
	return s.afterMutation(ctx, []domain.Transaction{tx}, accountID), nil
}

// Withdraw debits an account subject to its solvency rule.
func (s *BankingService) Withdraw(ctx context.Context, accountID, rawAmount string) (MutationResult, error) {
	amount, err := parseAmount("amount", rawAmount)
	if err != nil {
		return MutationResult{}, err
	}
	tx, err := s.ledger.Withdraw(accountID, amount)
	if err != nil {
		s.logRejected("withdraw", accountID, amount, err)
		return MutationResult{}, err
	}
	s.logger.Info("withdrawal recorded", "account", accountID, "amount", amount.String(), "transaction", tx.ID)
	return s.afterMutation(ctx, []domain.Transaction{tx}, accountID), nil
}

// Transfer moves money between two accounts atomically.
func (s *BankingService) Transfer(ctx context.Context, in TransferInput) (MutationResult, error) {
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return MutationResult{}, err
	}
	receipt, err := s.ledger.Transfer(in.SourceAccountID, in.DestinationAccountID, amount)
	if err != nil {
		s.logRejected("transfer", in.SourceAccountID, amount, err, "destination", in.DestinationAccountID)
		return MutationResult{}, err
	}
	s.logger.Info("transfer recorded",
		"source", in.SourceAccountID,
		"destination", in.DestinationAccountID,
		"amount", amount.String(),
	)
	return s.afterMutation(ctx, receipt.Records(), in.SourceAccountID, in.DestinationAccountID), nil
}

// ApplyInterest credits interest on a savings account. A zero result (no
// record appended) is not an error.
func (s *BankingService) ApplyInterest(ctx context.Context, accountID string) (MutationResult, error) {
	tx, credited, err := s.ledger.ApplyInterest(accountID)
	if err != nil {
		return MutationResult{}, err
	}
	if !credited {
		snap, err := s.GetAccount(accountID)
		if err != nil {
			return MutationResult{}, err
		}
		return MutationResult{Accounts: []domain.AccountSnapshot{snap}}, nil
	}
	s.logger.Info("interest credited", "account", accountID, "amount", tx.Amount.String())
	return s.afterMutation(ctx, []domain.Transaction{tx}, accountID), nil
}

// History returns the account history, optionally bounded by an inclusive range.
func (s *BankingService) History(q HistoryQuery) ([]domain.Transaction, error) {
	if q.Start == nil && q.End == nil {
		return s.ledger.History(q.AccountID)
	}
	start := time.Time{}
	if q.Start != nil {
		start = *q.Start
	}
	end := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	if q.End != nil {
		end = *q.End
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidInput, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return s.ledger.HistoryBetween(q.AccountID, start, end)
}

func (s *BankingService) RecentTransactions(limit int) []domain.Transaction {
	return s.ledger.RecentTransactions(limit)
}

// TransactionsByAmount returns records with min <= amount <= max, newest first.
func (s *BankingService) TransactionsByAmount(rawMin, rawMax string) ([]domain.Transaction, error) {
	min, err := parseAmount("min", rawMin)
	if err != nil {
		return nil, err
	}
	max, err := parseAmount("max", rawMax)
	if err != nil {
		return nil, err
	}
	if min.GreaterThan(max) {
		return nil, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidInput, min, max)
	}
	return s.ledger.TransactionsByAmount(min, max), nil
}

// Scan runs one fraud scan over the whole ledger and journals new flags.
func (s *BankingService) Scan(ctx context.Context) (fraud.ScanReport, error) {
	report, err := s.detector.Monitor(ctx, s.ledger)
	if err != nil {
		s.logger.Error("fraud scan failed", "error", err)
	}
	for _, f := range report.Flags {
		s.journalWrite(ctx, "record flag", func(ctx context.Context, j Journal) error {
			return j.RecordFlag(ctx, f)
		})
	}
	return report, err
}

// Flags returns every flag, or only those of accountID when it is non-empty.
func (s *BankingService) Flags(accountID string) []domain.Flag {
	if accountID == "" {
		return s.detector.Flags()
	}
	return s.detector.FlagsFor(accountID)
}

// BlockAccount blacklists an existing account.
func (s *BankingService) BlockAccount(ctx context.Context, accountID string) error {
	if _, err := s.ledger.Account(accountID); err != nil {
		return err
	}
	s.detector.BlockAccount(accountID)
	s.journalWrite(ctx, "mark blocked", func(ctx context.Context, j Journal) error {
		return j.MarkBlocked(ctx, accountID, true, s.nowFn())
	})
	return nil
}

// UnblockAccount removes an account from the blacklist.
func (s *BankingService) UnblockAccount(ctx context.Context, accountID string) error {
	if !s.detector.UnblockAccount(accountID) {
		return fmt.Errorf("account %s is not blacklisted: %w", accountID, ledger.ErrAccountNotFound)
	}
	s.journalWrite(ctx, "mark unblocked", func(ctx context.Context, j Journal) error {
		return j.MarkBlocked(ctx, accountID, false, s.nowFn())
	})
	return nil
}

func (s *BankingService) Blacklist() []string {
	return s.detector.Blacklist()
}

// Counterparties reads transfer partners of an account from the journal.
func (s *BankingService) Counterparties(ctx context.Context, accountID string) ([]repository.Counterparty, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	if _, err := s.ledger.Account(accountID); err != nil {
		return nil, err
	}
	return s.journal.Counterparties(ctx, accountID)
}

// afterMutation journals the appended records with fresh balance checkpoints
// and, when enabled, runs the fraud scan that every mutation is followed by.
func (s *BankingService) afterMutation(ctx context.Context, txs []domain.Transaction, accountIDs ...string) MutationResult {
	res := MutationResult{Transactions: txs}
	for _, id := range accountIDs {
		snap, err := s.GetAccount(id)
		if err != nil {
			continue
		}
		res.Accounts = append(res.Accounts, snap)
	}

	if len(txs) > 0 {
		act := repository.Activity{Accounts: res.Accounts, Transactions: txs}
		s.journalWrite(ctx, "record activity", func(ctx context.Context, j Journal) error {
			return j.RecordActivity(ctx, act)
		})
	}

	if s.autoScan {
		report, _ := s.Scan(ctx)
		res.Flags = report.Flags
	}
	return res
}

// journalWrite is best effort: the ledger is authoritative, so journal
// failures are logged and never returned to the caller.
func (s *BankingService) journalWrite(ctx context.Context, op string, fn func(context.Context, Journal) error) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.journalTimeout)
	defer cancel()
	if err := fn(ctx, s.journal); err != nil {
		s.logger.Warn("journal write failed", "op", op, "error", err)
	}
}

func (s *BankingService) logRejected(op, accountID string, amount decimal.Decimal, err error, extra ...any) {
	args := append([]any{"op", op, "account", accountID, "amount", amount.String(), "error", err}, extra...)
	s.logger.Info("operation rejected", args...)
}
