package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/service"
)

// Generator produces replayable ledger workloads.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.NumCustomers <= 0 {
		cfg.NumCustomers = defaults.NumCustomers
	}
	if cfg.NumOperations <= 0 {
		cfg.NumOperations = defaults.NumOperations
	}
	if cfg.BurstChance < 0 {
		cfg.BurstChance = defaults.BurstChance
	}
	if cfg.LargeAmountChance < 0 {
		cfg.LargeAmountChance = defaults.LargeAmountChance
	}
	if cfg.CheckingChance <= 0 {
		cfg.CheckingChance = defaults.CheckingChance
	}
	if cfg.Start.IsZero() {
		cfg.Start = defaults.Start
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		nameFragments: defaultNameFragments(),
	}
}

// Generate synthesises customers, their accounts and a time-ordered stream
// of operations. Every customer gets a savings account; most also get a
// checking account. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (service.Workload, error) {
	customers := make([]service.CustomerInput, g.cfg.NumCustomers)
	var accounts []service.AccountInput
	var accountIDs []string

	for i := 0; i < g.cfg.NumCustomers; i++ {
		if err := ctx.Err(); err != nil {
			return service.Workload{}, err
		}
		customerID := fmt.Sprintf("CUS-%05d", i+1)
		customers[i] = service.CustomerInput{ID: customerID, Name: g.randomFullName()}

		accounts = append(accounts, service.AccountInput{
			CustomerID:     customerID,
			Kind:           string(domain.AccountSavings),
			OpeningBalance: g.amountBetween(500, 5000),
		})
		accountIDs = append(accountIDs, customerID+domain.AccountSavings.Suffix())

		if g.rand.Float64() < g.cfg.CheckingChance {
			accounts = append(accounts, service.AccountInput{
				CustomerID:     customerID,
				Kind:           string(domain.AccountChecking),
				OpeningBalance: g.amountBetween(0, 2000),
			})
			accountIDs = append(accountIDs, customerID+domain.AccountChecking.Suffix())
		}
	}

	ops := make([]service.Operation, 0, g.cfg.NumOperations)
	clock := g.cfg.Start
	for len(ops) < g.cfg.NumOperations {
		if err := ctx.Err(); err != nil {
			return service.Workload{}, err
		}
		clock = clock.Add(time.Duration(30+g.rand.Intn(600)) * time.Second)
		account := accountIDs[g.rand.Intn(len(accountIDs))]

		if g.rand.Float64() < g.cfg.BurstChance {
			burst := g.burst(account, clock, g.cfg.NumOperations-len(ops))
			ops = append(ops, burst...)
			clock = burst[len(burst)-1].At
			continue
		}
		ops = append(ops, g.randomOperation(account, accountIDs, clock))
	}

	return service.Workload{Customers: customers, Accounts: accounts, Operations: ops}, nil
}

// burst emits four to six small withdrawals a few seconds apart.
func (g *Generator) burst(account string, at time.Time, room int) []service.Operation {
	n := 4 + g.rand.Intn(3)
	if n > room {
		n = room
	}
	ops := make([]service.Operation, n)
	for i := range ops {
		ops[i] = service.Operation{
			Kind:      service.OpWithdraw,
			AccountID: account,
			Amount:    g.amountBetween(5, 60),
			At:        at,
		}
		at = at.Add(time.Duration(2+g.rand.Intn(10)) * time.Second)
	}
	return ops
}

func (g *Generator) randomOperation(account string, accountIDs []string, at time.Time) service.Operation {
	op := service.Operation{AccountID: account, At: at}
	switch roll := g.rand.Float64(); {
	case roll < 0.35:
		op.Kind = service.OpDeposit
		op.Amount = g.maybeLargeAmount(20, 1500)
	case roll < 0.65:
		op.Kind = service.OpWithdraw
		op.Amount = g.amountBetween(10, 800)
	case roll < 0.97:
		op.Kind = service.OpTransfer
		op.Destination = accountIDs[g.rand.Intn(len(accountIDs))]
		if op.Destination == account {
			op.Destination = accountIDs[(g.rand.Intn(len(accountIDs))+1)%len(accountIDs)]
		}
		op.Amount = g.maybeLargeAmount(10, 1000)
	default:
		op.Kind = service.OpInterest
	}
	return op
}

func (g *Generator) maybeLargeAmount(min, max float64) string {
	if g.rand.Float64() < g.cfg.LargeAmountChance {
		return g.amountBetween(10000.01, 25000)
	}
	return g.amountBetween(min, max)
}

func (g *Generator) amountBetween(min, max float64) string {
	v := min + g.rand.Float64()*(max-min)
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

func (g *Generator) randomFullName() string {
	return fmt.Sprintf("%s %s", g.nameFragments.first[g.rand.Intn(len(g.nameFragments.first))],
		g.nameFragments.last[g.rand.Intn(len(g.nameFragments.last))])
}

type nameFragments struct {
	first []string
	last  []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first: []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:  []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
	}
}
