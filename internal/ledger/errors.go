package ledger

import "errors"

// Domain errors. All of them are recoverable at the caller boundary; callers
// match on them with errors.Is.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOverdraftExceeded    = errors.New("overdraft limit exceeded")
	ErrAccountNotFound      = errors.New("account not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrDuplicateCustomer    = errors.New("customer already exists")
	ErrSameAccount          = errors.New("source and destination accounts are the same")
	ErrInterestNotSupported = errors.New("interest applies to savings accounts only")
	ErrInvalidIdentifier    = errors.New("identifier is required")
	ErrInvalidAccountKind   = errors.New("invalid account kind")
)
