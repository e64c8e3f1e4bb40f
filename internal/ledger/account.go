package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
)

// Account owns a balance and an append-only history. Every read and write of
// that state goes through the account's mutex; accounts are created and owned
// by a Ledger.
type Account struct {
	mu             sync.Mutex
	id             string
	customerID     string
	kind           domain.AccountKind
	balance        decimal.Decimal
	interestRate   decimal.Decimal
	overdraftLimit decimal.Decimal
	history        []domain.Transaction
	createdAt      time.Time

	owner *Ledger
}

// TransferReceipt holds the three records a successful transfer appends.
type TransferReceipt struct {
	Withdrawal domain.Transaction `json:"withdrawal"`
	Deposit    domain.Transaction `json:"deposit"`
	Transfer   domain.Transaction `json:"transfer"`
}

// Records returns the receipt's transactions in the order they were appended.
func (r TransferReceipt) Records() []domain.Transaction {
	return []domain.Transaction{r.Withdrawal, r.Deposit, r.Transfer}
}

func (a *Account) ID() string { return a.id }

func (a *Account) CustomerID() string { return a.customerID }

func (a *Account) Kind() domain.AccountKind { return a.kind }

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Snapshot returns a consistent read view of the account.
func (a *Account) Snapshot() domain.AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Account) snapshotLocked() domain.AccountSnapshot {
	return domain.AccountSnapshot{
		ID:             a.id,
		CustomerID:     a.customerID,
		Kind:           a.kind,
		Balance:        a.balance,
		InterestRate:   a.interestRate,
		OverdraftLimit: a.overdraftLimit,
		CreatedAt:      a.createdAt,
	}
}

// History returns a copy of the full history in chronological order.
func (a *Account) History() []domain.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Transaction(nil), a.history...)
}

// HistoryFrom returns a copy of the records after the first offset entries.
func (a *Account) HistoryFrom(offset int) []domain.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(a.history) {
		return nil
	}
	return append([]domain.Transaction(nil), a.history[offset:]...)
}

// HistoryBetween returns the records stamped within [start, end], inclusive on
// both ends, preserving chronological order.
func (a *Account) HistoryBetween(start, end time.Time) []domain.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range a.history {
		if tx.Within(start, end) {
			out = append(out, tx)
		}
	}
	return out
}

// Deposit credits amount and appends a deposit record.
func (a *Account) Deposit(amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.owner.checkGuard(a.id); err != nil {
		return domain.Transaction{}, err
	}
	tx, err := a.prepareLocked(domain.TransactionDeposit, a.id, amount, a.owner.now(), 0)
	if err != nil {
		return domain.Transaction{}, err
	}
	a.commitLocked(tx, amount)
	return tx, nil
}

// Withdraw debits amount after the account kind's solvency check. On failure
// the balance and history are left untouched.
func (a *Account) Withdraw(amount decimal.Decimal) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, ErrInvalidAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.owner.checkGuard(a.id); err != nil {
		return domain.Transaction{}, err
	}
	if err := a.checkSolvencyLocked(amount); err != nil {
		return domain.Transaction{}, err
	}
	tx, err := a.prepareLocked(domain.TransactionWithdrawal, a.id, amount, a.owner.now(), 0)
	if err != nil {
		return domain.Transaction{}, err
	}
	a.commitLocked(tx, amount.Neg())
	return tx, nil
}

// Transfer moves amount from a to dest: a withdrawal on a, a deposit on dest,
// then an explicit transfer record on a. Both accounts are locked in ascending
// id order for the whole operation, and every record is prepared before the
// first one is committed, so a failure leaves both accounts unchanged.
func (a *Account) Transfer(amount decimal.Decimal, dest *Account) (TransferReceipt, error) {
	if dest == nil {
		return TransferReceipt{}, ErrAccountNotFound
	}
	if a == dest || a.id == dest.id {
		return TransferReceipt{}, ErrSameAccount
	}
	if !amount.IsPositive() {
		return TransferReceipt{}, ErrInvalidAmount
	}

	first, second := a, dest
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if err := a.owner.checkGuard(a.id); err != nil {
		return TransferReceipt{}, err
	}
	if err := dest.owner.checkGuard(dest.id); err != nil {
		return TransferReceipt{}, err
	}
	if err := a.checkSolvencyLocked(amount); err != nil {
		return TransferReceipt{}, err
	}

	now := a.owner.now()
	withdrawal, err := a.prepareLocked(domain.TransactionWithdrawal, a.id, amount, now, 0)
	if err != nil {
		return TransferReceipt{}, err
	}
	deposit, err := dest.prepareLocked(domain.TransactionDeposit, dest.id, amount, now, 0)
	if err != nil {
		return TransferReceipt{}, err
	}
	transfer, err := a.prepareLocked(domain.TransactionTransfer, dest.id, amount, now, 1)
	if err != nil {
		return TransferReceipt{}, err
	}

	a.commitLocked(withdrawal, amount.Neg())
	dest.commitLocked(deposit, amount)
	a.commitLocked(transfer, decimal.Zero)

	return TransferReceipt{Withdrawal: withdrawal, Deposit: deposit, Transfer: transfer}, nil
}

// ApplyInterest credits balance*rate as a deposit record on a savings account.
// credited is false when nothing was due (non-positive balance or zero rate).
func (a *Account) ApplyInterest() (tx domain.Transaction, credited bool, err error) {
	if a.kind != domain.AccountSavings {
		return domain.Transaction{}, false, ErrInterestNotSupported
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.owner.checkGuard(a.id); err != nil {
		return domain.Transaction{}, false, err
	}
	interest := a.balance.Mul(a.interestRate)
	if !interest.IsPositive() {
		return domain.Transaction{}, false, nil
	}
	tx, err = a.prepareLocked(domain.TransactionDeposit, a.id, interest, a.owner.now(), 0)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	a.commitLocked(tx, interest)
	return tx, true, nil
}

func (a *Account) checkSolvencyLocked(amount decimal.Decimal) error {
	switch a.kind {
	case domain.AccountSavings:
		if amount.GreaterThan(a.balance) {
			return ErrInsufficientFunds
		}
	case domain.AccountChecking:
		if amount.GreaterThan(a.balance.Add(a.overdraftLimit)) {
			return ErrOverdraftExceeded
		}
	default:
		return ErrInvalidAccountKind
	}
	return nil
}

// prepareLocked builds the record that would be appended after pending more
// records already prepared for this account. Timestamps never go backwards
// within one account history.
func (a *Account) prepareLocked(typ domain.TransactionType, destination string, amount decimal.Decimal, now time.Time, pending int) (domain.Transaction, error) {
	if n := len(a.history); n > 0 && now.Before(a.history[n-1].Timestamp) {
		now = a.history[n-1].Timestamp
	}
	return domain.NewTransaction(len(a.history)+1+pending, a.id, destination, amount, typ, now)
}

func (a *Account) commitLocked(tx domain.Transaction, delta decimal.Decimal) {
	a.balance = a.balance.Add(delta)
	a.history = append(a.history, tx)
	a.owner.stream.insert(tx)
}
