package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind is the closed set of account variants the ledger supports.
type AccountKind string

const (
	AccountSavings  AccountKind = "savings"
	AccountChecking AccountKind = "checking"
)

// ParseAccountKind normalises user input ("Savings", " checking ") into a kind.
func ParseAccountKind(raw string) (AccountKind, error) {
	switch AccountKind(strings.ToLower(strings.TrimSpace(raw))) {
	case AccountSavings:
		return AccountSavings, nil
	case AccountChecking:
		return AccountChecking, nil
	default:
		return "", fmt.Errorf("unknown account kind %q", raw)
	}
}

// Suffix returns the account-number suffix used when an account id is derived
// from its customer id.
func (k AccountKind) Suffix() string {
	if k == AccountSavings {
		return "_SA"
	}
	return "_CA"
}

// AccountSnapshot is a point-in-time read view of an account.
type AccountSnapshot struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customerId"`
	Kind           AccountKind     `json:"kind"`
	Balance        decimal.Decimal `json:"balance"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	OverdraftLimit decimal.Decimal `json:"overdraftLimit"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Customer owns a set of accounts. An account belongs to exactly one customer.
type Customer struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AccountIDs []string `json:"accountIds"`
}
