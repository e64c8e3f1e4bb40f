package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger event. The direction of the amount is
// implied by the type; amounts themselves are always positive.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionTransfer:
		return true
	default:
		return false
	}
}

var (
	// ErrNonPositiveAmount is returned when a transaction would carry an amount <= 0.
	ErrNonPositiveAmount = errors.New("transaction amount must be positive")
	// ErrUnknownTransactionType is returned for types outside deposit/withdrawal/transfer.
	ErrUnknownTransactionType = errors.New("unknown transaction type")
)

// Transaction is one immutable ledger event. It is passed and stored by value;
// nothing in the ledger hands out a pointer into an account history.
type Transaction struct {
	ID                   string          `json:"id"`
	Reference            string          `json:"reference"`
	SourceAccountID      string          `json:"sourceAccountId"`
	DestinationAccountID string          `json:"destinationAccountId"`
	Amount               decimal.Decimal `json:"amount"`
	Type                 TransactionType `json:"type"`
	Timestamp            time.Time       `json:"timestamp"`
}

// NewTransaction builds a transaction stamped at ts. seq is the 1-based position
// of the record in the owning account's history and becomes its ID.
func NewTransaction(seq int, source, destination string, amount decimal.Decimal, typ TransactionType, ts time.Time) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrNonPositiveAmount
	}
	if !typ.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrUnknownTransactionType, typ)
	}
	return Transaction{
		ID:                   fmt.Sprintf("%d", seq),
		Reference:            uuid.NewString(),
		SourceAccountID:      source,
		DestinationAccountID: destination,
		Amount:               amount,
		Type:                 typ,
		Timestamp:            ts,
	}, nil
}

// Within reports whether the transaction timestamp lies in [start, end].
func (t Transaction) Within(start, end time.Time) bool {
	return !t.Timestamp.Before(start) && !t.Timestamp.After(end)
}
