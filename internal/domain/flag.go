package domain

import "time"

// FlagReason names the rule that marked a transaction as suspicious.
type FlagReason string

const (
	FlagLargeAmount   FlagReason = "large_amount"
	FlagRapidVelocity FlagReason = "rapid_velocity"
)

// Flag is an advisory record. It never blocks or reverses the transaction it points at.
type Flag struct {
	Transaction Transaction `json:"transaction"`
	Reason      FlagReason  `json:"reason"`
	// BurstCount is the velocity counter at evaluation time; zero for amount flags.
	BurstCount int       `json:"burstCount,omitempty"`
	FlaggedAt  time.Time `json:"flaggedAt"`
}

// AccountID is the account the flag is keyed on.
func (f Flag) AccountID() string {
	return f.Transaction.SourceAccountID
}
