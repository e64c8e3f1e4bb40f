package ledger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
)

// AccountGuard is consulted under the account lock before any mutation. A
// non-nil error rejects the operation before anything is written.
type AccountGuard func(accountID string) error

// Options carries the defaults applied when an account is opened without
// explicit terms.
type Options struct {
	SavingsRate       decimal.Decimal
	CheckingOverdraft decimal.Decimal
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		SavingsRate:       decimal.RequireFromString("0.02"),
		CheckingOverdraft: decimal.NewFromInt(1000),
	}
}

// Ledger is the registry of customers and accounts plus the global
// transaction stream. The registry lock is never held while an account lock
// is being acquired.
type Ledger struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
	accounts  map[string]*Account
	opts      Options
	nowFn     func() time.Time
	guard     AccountGuard

	stream *stream
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	return &Ledger{
		customers: make(map[string]*domain.Customer),
		accounts:  make(map[string]*Account),
		opts:      opts,
		nowFn:     time.Now,
		stream:    &stream{},
	}
}

// WithClock overrides the time source; used by tests to script timestamps.
func (l *Ledger) WithClock(nowFn func() time.Time) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if nowFn != nil {
		l.nowFn = nowFn
	}
	return l
}

// WithAccountGuard installs a pre-mutation check, e.g. a blacklist.
func (l *Ledger) WithAccountGuard(guard AccountGuard) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.guard = guard
	return l
}

func (l *Ledger) now() time.Time {
	l.mu.RLock()
	fn := l.nowFn
	l.mu.RUnlock()
	return fn()
}

func (l *Ledger) checkGuard(accountID string) error {
	l.mu.RLock()
	guard := l.guard
	l.mu.RUnlock()
	if guard == nil {
		return nil
	}
	return guard(accountID)
}

// AddCustomer registers a customer with no accounts.
func (l *Ledger) AddCustomer(id, name string) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Customer{}, fmt.Errorf("customer id: %w", ErrInvalidIdentifier)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.customers[id]; exists {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", id, ErrDuplicateCustomer)
	}
	c := &domain.Customer{ID: id, Name: strings.TrimSpace(name)}
	l.customers[id] = c
	return copyCustomer(c), nil
}

// OpenAccountParams describes a new account. Empty ID derives one from the
// customer id and kind; nil terms fall back to the ledger options.
type OpenAccountParams struct {
	ID             string
	CustomerID     string
	Kind           domain.AccountKind
	InterestRate   *decimal.Decimal
	OverdraftLimit *decimal.Decimal
	OpeningBalance decimal.Decimal
}

// OpenAccount creates an account for an existing customer. A positive
// opening balance is recorded as the account's first deposit.
func (l *Ledger) OpenAccount(p OpenAccountParams) (domain.AccountSnapshot, error) {
	customerID := strings.TrimSpace(p.CustomerID)
	if customerID == "" {
		return domain.AccountSnapshot{}, fmt.Errorf("customer id: %w", ErrInvalidIdentifier)
	}
	if p.Kind != domain.AccountSavings && p.Kind != domain.AccountChecking {
		return domain.AccountSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidAccountKind, p.Kind)
	}
	if p.OpeningBalance.IsNegative() {
		return domain.AccountSnapshot{}, fmt.Errorf("opening balance: %w", ErrInvalidAmount)
	}
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = customerID + p.Kind.Suffix()
	}

	acct := &Account{
		id:         id,
		customerID: customerID,
		kind:       p.Kind,
		balance:    decimal.Zero,
		owner:      l,
	}
	switch p.Kind {
	case domain.AccountSavings:
		acct.interestRate = l.opts.SavingsRate
		if p.InterestRate != nil {
			acct.interestRate = *p.InterestRate
		}
		if acct.interestRate.IsNegative() {
			return domain.AccountSnapshot{}, fmt.Errorf("interest rate: %w", ErrInvalidAmount)
		}
	case domain.AccountChecking:
		acct.overdraftLimit = l.opts.CheckingOverdraft
		if p.OverdraftLimit != nil {
			acct.overdraftLimit = *p.OverdraftLimit
		}
		if acct.overdraftLimit.IsNegative() {
			return domain.AccountSnapshot{}, fmt.Errorf("overdraft limit: %w", ErrInvalidAmount)
		}
	}

	if p.OpeningBalance.IsPositive() {
		if err := l.checkGuard(id); err != nil {
			return domain.AccountSnapshot{}, fmt.Errorf("opening deposit for %s: %w", id, err)
		}
	}

	l.mu.Lock()
	customer, ok := l.customers[customerID]
	if !ok {
		l.mu.Unlock()
		return domain.AccountSnapshot{}, fmt.Errorf("customer %s: %w", customerID, ErrCustomerNotFound)
	}
	if _, exists := l.accounts[id]; exists {
		l.mu.Unlock()
		return domain.AccountSnapshot{}, fmt.Errorf("account %s: %w", id, ErrDuplicateAccount)
	}
	acct.createdAt = l.nowFn()
	l.accounts[id] = acct
	customer.AccountIDs = append(customer.AccountIDs, id)
	l.mu.Unlock()

	if p.OpeningBalance.IsPositive() {
		if _, err := acct.Deposit(p.OpeningBalance); err != nil {
			l.unregister(customerID, id)
			return domain.AccountSnapshot{}, fmt.Errorf("opening deposit for %s: %w", id, err)
		}
	}
	return acct.Snapshot(), nil
}

// unregister drops an account whose opening deposit failed, so the id can be
// reused.
func (l *Ledger) unregister(customerID, accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, accountID)
	customer, ok := l.customers[customerID]
	if !ok {
		return
	}
	ids := customer.AccountIDs[:0]
	for _, id := range customer.AccountIDs {
		if id != accountID {
			ids = append(ids, id)
		}
	}
	customer.AccountIDs = ids
}

// Account resolves an account by id.
func (l *Ledger) Account(id string) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrAccountNotFound)
	}
	return acct, nil
}

// Customer returns a copy of the customer record.
func (l *Ledger) Customer(id string) (domain.Customer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %s: %w", id, ErrCustomerNotFound)
	}
	return copyCustomer(c), nil
}

// CustomerAccount returns the customer's account with the given id.
func (l *Ledger) CustomerAccount(customerID, accountID string) (*Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.customers[customerID]; !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrCustomerNotFound)
	}
	acct, ok := l.accounts[accountID]
	if !ok || acct.customerID != customerID {
		return nil, fmt.Errorf("account %s of customer %s: %w", accountID, customerID, ErrAccountNotFound)
	}
	return acct, nil
}

// Customers lists every customer sorted by id.
func (l *Ledger) Customers() []domain.Customer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Customer, 0, len(l.customers))
	for _, c := range l.customers {
		out = append(out, copyCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AccountIDs lists every account id in ascending order.
func (l *Ledger) AccountIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Accounts returns a snapshot of every account sorted by id.
func (l *Ledger) Accounts() []domain.AccountSnapshot {
	ids := l.AccountIDs()
	out := make([]domain.AccountSnapshot, 0, len(ids))
	for _, id := range ids {
		acct, err := l.Account(id)
		if err != nil {
			continue
		}
		out = append(out, acct.Snapshot())
	}
	return out
}

// Deposit credits the account with the given id.
func (l *Ledger) Deposit(accountID string, amount decimal.Decimal) (domain.Transaction, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return acct.Deposit(amount)
}

// Withdraw debits the account with the given id.
func (l *Ledger) Withdraw(accountID string, amount decimal.Decimal) (domain.Transaction, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return acct.Withdraw(amount)
}

// Transfer moves amount between two accounts of the ledger.
func (l *Ledger) Transfer(sourceID, destinationID string, amount decimal.Decimal) (TransferReceipt, error) {
	if sourceID == destinationID {
		return TransferReceipt{}, ErrSameAccount
	}
	src, err := l.Account(sourceID)
	if err != nil {
		return TransferReceipt{}, err
	}
	dst, err := l.Account(destinationID)
	if err != nil {
		return TransferReceipt{}, err
	}
	return src.Transfer(amount, dst)
}

// ApplyInterest credits interest on a savings account.
func (l *Ledger) ApplyInterest(accountID string) (domain.Transaction, bool, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	return acct.ApplyInterest()
}

// History returns a copy of the account history.
func (l *Ledger) History(accountID string) ([]domain.Transaction, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return nil, err
	}
	return acct.History(), nil
}

// HistoryFrom returns the account history after the first offset records.
func (l *Ledger) HistoryFrom(accountID string, offset int) ([]domain.Transaction, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return nil, err
	}
	return acct.HistoryFrom(offset), nil
}

// HistoryBetween returns the account records stamped within [start, end].
func (l *Ledger) HistoryBetween(accountID string, start, end time.Time) ([]domain.Transaction, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return nil, err
	}
	return acct.HistoryBetween(start, end), nil
}

// RecentTransactions returns up to limit records across all accounts, newest
// first. limit <= 0 returns everything.
func (l *Ledger) RecentTransactions(limit int) []domain.Transaction {
	return l.stream.recent(limit)
}

// TransactionsByAmount returns every record with min <= amount <= max, newest
// first. An inverted range yields nothing.
func (l *Ledger) TransactionsByAmount(min, max decimal.Decimal) []domain.Transaction {
	if min.GreaterThan(max) {
		return nil
	}
	return l.stream.between(min, max)
}

// TransactionCount is the size of the global stream.
func (l *Ledger) TransactionCount() int {
	return l.stream.len()
}

func copyCustomer(c *domain.Customer) domain.Customer {
	out := *c
	out.AccountIDs = append([]string(nil), c.AccountIDs...)
	return out
}
