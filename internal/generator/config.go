package generator

import "time"

// Config drives the synthetic workload generator.
type Config struct {
	NumCustomers  int
	NumOperations int
	// BurstChance is the probability that an operation starts a rapid run of
	// withdrawals on one account, spaced well inside the velocity window.
	BurstChance float64
	// LargeAmountChance is the probability that a deposit or transfer
	// exceeds the large-amount threshold.
	LargeAmountChance float64
	CheckingChance    float64
	Start             time.Time
	Seed              int64
}

// DefaultConfig returns baseline settings that exercise both fraud rules.
func DefaultConfig() Config {
	return Config{
		NumCustomers:      200,
		NumOperations:     5000,
		BurstChance:       0.02,
		LargeAmountChance: 0.01,
		CheckingChance:    0.7,
		Start:             time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Seed:              42,
	}
}
