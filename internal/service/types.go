package service

import (
	"time"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/fraud"
	"github.com/vanshika/ledgerwatch/internal/ledger"
)

// CustomerInput is the inbound payload for registering a customer.
type CustomerInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AccountInput is the inbound payload for opening an account. Monetary fields
// are decimal strings; empty terms fall back to the configured defaults.
type AccountInput struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customerId"`
	Kind           string `json:"kind"`
	InterestRate   string `json:"interestRate,omitempty"`
	OverdraftLimit string `json:"overdraftLimit,omitempty"`
	OpeningBalance string `json:"openingBalance,omitempty"`
}

// TransferInput moves Amount from SourceAccountID to DestinationAccountID.
type TransferInput struct {
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId"`
	Amount               string `json:"amount"`
}

// HistoryQuery bounds a history read; nil ends are open.
type HistoryQuery struct {
	AccountID string
	Start     *time.Time
	End       *time.Time
}

// MutationResult is what every balance-changing operation returns: the
// records it appended, the touched accounts after the change, and the flags
// raised by the scan that followed it.
type MutationResult struct {
	Transactions []domain.Transaction     `json:"transactions"`
	Accounts     []domain.AccountSnapshot `json:"accounts"`
	Flags        []domain.Flag            `json:"flags"`
}

// OperationKind names a replayable ledger mutation.
type OperationKind string

const (
	OpDeposit  OperationKind = "deposit"
	OpWithdraw OperationKind = "withdraw"
	OpTransfer OperationKind = "transfer"
	OpInterest OperationKind = "interest"
)

// Operation is one entry of a replayable workload.
type Operation struct {
	Kind        OperationKind `json:"kind"`
	AccountID   string        `json:"accountId"`
	Destination string        `json:"destination,omitempty"`
	Amount      string        `json:"amount,omitempty"`
	At          time.Time     `json:"at"`
}

// Workload is a full replay input: the customers and accounts to create and
// the operations to apply in order.
type Workload struct {
	Customers  []CustomerInput `json:"customers"`
	Accounts   []AccountInput  `json:"accounts"`
	Operations []Operation     `json:"operations"`
}

// ReplaySummary reports how a workload replay went. Rejected operations are
// expected (e.g. insufficient funds) and do not abort the replay.
type ReplaySummary struct {
	Applied  int           `json:"applied"`
	Rejected int           `json:"rejected"`
	Errors   []string      `json:"errors,omitempty"`
	Flags    []domain.Flag `json:"flags"`
}

// Dependencies groups the collaborators of a BankingService.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Detector *fraud.Detector
	// Journal is optional; nil disables graph journaling.
	Journal Journal
}
