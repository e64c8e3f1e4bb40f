package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/graph"
)

// Activity is one ledger mutation as it is journaled: the records it appended
// and the balance checkpoints of the accounts it touched.
type Activity struct {
	Accounts     []domain.AccountSnapshot
	Transactions []domain.Transaction
}

// Counterparty aggregates the transfers between an account and one other account.
type Counterparty struct {
	AccountID string          `json:"accountId"`
	Direction string          `json:"direction"`
	Transfers int64           `json:"transfers"`
	Total     decimal.Decimal `json:"total"`
}

// Repository journals ledger state into the graph database. The in-memory
// ledger stays authoritative; the graph is a queryable copy.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// UpsertCustomer ensures a customer node exists with its latest name.
func (r *Repository) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	if c.ID == "" {
		return errors.New("customer id is required")
	}
	stmt := graph.Statement{
		Cypher: upsertCustomerCypher,
		Params: map[string]any{
			"customerId": c.ID,
			"name":       c.Name,
		},
	}
	if err := r.client.ExecuteWrite(ctx, stmt); err != nil {
		return fmt.Errorf("upsert customer %s: %w", c.ID, err)
	}
	return nil
}

// UpsertAccount ensures an account node exists, owned by its customer, with
// the snapshot's terms and balance.
func (r *Repository) UpsertAccount(ctx context.Context, a domain.AccountSnapshot) error {
	stmt, err := accountStatement(a)
	if err != nil {
		return err
	}
	if err := r.client.ExecuteWrite(ctx, stmt); err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

// RecordActivity writes the balance checkpoints and ledger entries of one
// mutation in a single transaction. Transfer records also produce a
// TRANSFERRED edge between the two accounts.
func (r *Repository) RecordActivity(ctx context.Context, act Activity) error {
	if len(act.Accounts) == 0 && len(act.Transactions) == 0 {
		return nil
	}
	stmts := make([]graph.Statement, 0, len(act.Accounts)+2*len(act.Transactions))
	for _, a := range act.Accounts {
		stmt, err := accountStatement(a)
		if err != nil {
			return err
		}
		stmts = append(stmts, stmt)
	}
	for _, tx := range act.Transactions {
		if tx.Reference == "" || tx.SourceAccountID == "" {
			return errors.New("transaction reference and source account are required")
		}
		stmts = append(stmts, graph.Statement{
			Cypher: recordEntryCypher,
			Params: map[string]any{
				"accountId": tx.SourceAccountID,
				"reference": tx.Reference,
				"props":     entryProperties(tx),
			},
		})
		if tx.Type == domain.TransactionTransfer {
			stmts = append(stmts, graph.Statement{
				Cypher: recordTransferCypher,
				Params: map[string]any{
					"sourceId":      tx.SourceAccountID,
					"destinationId": tx.DestinationAccountID,
					"reference":     tx.Reference,
					"amount":        tx.Amount.String(),
					"timestamp":     formatTime(tx.Timestamp),
				},
			})
		}
	}
	if err := r.client.ExecuteWrite(ctx, stmts...); err != nil {
		return fmt.Errorf("record activity (%d records): %w", len(act.Transactions), err)
	}
	return nil
}

// RecordFlag attaches a fraud flag to the ledger entry it was raised on.
func (r *Repository) RecordFlag(ctx context.Context, f domain.Flag) error {
	if f.Transaction.Reference == "" {
		return errors.New("flagged transaction reference is required")
	}
	stmt := graph.Statement{
		Cypher: recordFlagCypher,
		Params: map[string]any{
			"reference":  f.Transaction.Reference,
			"accountId":  f.AccountID(),
			"reason":     string(f.Reason),
			"burstCount": f.BurstCount,
			"flaggedAt":  formatTime(f.FlaggedAt),
		},
	}
	if err := r.client.ExecuteWrite(ctx, stmt); err != nil {
		return fmt.Errorf("record flag on %s: %w", f.Transaction.Reference, err)
	}
	return nil
}

// MarkBlocked mirrors a blacklist change onto the account node.
func (r *Repository) MarkBlocked(ctx context.Context, accountID string, blocked bool, at time.Time) error {
	if accountID == "" {
		return errors.New("account id is required")
	}
	stmt := graph.Statement{
		Cypher: markBlockedCypher,
		Params: map[string]any{
			"accountId": accountID,
			"blocked":   blocked,
			"updatedAt": formatTime(at),
		},
	}
	if err := r.client.ExecuteWrite(ctx, stmt); err != nil {
		return fmt.Errorf("mark account %s blocked=%v: %w", accountID, blocked, err)
	}
	return nil
}

// Counterparties lists the accounts accountID has exchanged transfers with,
// largest total first. Amounts are stored as decimal strings and summed here.
func (r *Repository) Counterparties(ctx context.Context, accountID string) ([]Counterparty, error) {
	if accountID == "" {
		return nil, errors.New("account id is required")
	}
	res, err := r.client.ExecuteRead(ctx, graph.Statement{
		Cypher: counterpartiesCypher,
		Params: map[string]any{"accountId": accountID},
	})
	if err != nil {
		return nil, fmt.Errorf("counterparties of %s: %w", accountID, err)
	}

	out := make([]Counterparty, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, Counterparty{
			AccountID: rec.String("accountId"),
			Direction: rec.String("direction"),
			Transfers: rec.Int("transfers"),
			Total:     sumAmounts(rec["amounts"]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}

func accountStatement(a domain.AccountSnapshot) (graph.Statement, error) {
	if a.ID == "" || a.CustomerID == "" {
		return graph.Statement{}, errors.New("account and customer ids are required")
	}
	return graph.Statement{
		Cypher: upsertAccountCypher,
		Params: map[string]any{
			"accountId":  a.ID,
			"customerId": a.CustomerID,
			"props":      accountProperties(a),
		},
	}, nil
}

func accountProperties(a domain.AccountSnapshot) map[string]any {
	return map[string]any{
		"kind":           string(a.Kind),
		"balance":        a.Balance.String(),
		"interestRate":   a.InterestRate.String(),
		"overdraftLimit": a.OverdraftLimit.String(),
		"createdAt":      formatTime(a.CreatedAt),
	}
}

func entryProperties(tx domain.Transaction) map[string]any {
	return map[string]any{
		"seq":                  tx.ID,
		"type":                 string(tx.Type),
		"sourceAccountId":      tx.SourceAccountID,
		"destinationAccountId": tx.DestinationAccountID,
		"amount":               tx.Amount.String(),
		"timestamp":            formatTime(tx.Timestamp),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sumAmounts(val any) decimal.Decimal {
	total := decimal.Zero
	switch v := val.(type) {
	case []any:
		for _, item := range v {
			total = total.Add(toDecimal(item))
		}
	case []string:
		for _, item := range v {
			total = total.Add(toDecimal(item))
		}
	}
	return total
}

func toDecimal(val any) decimal.Decimal {
	switch v := val.(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

const upsertCustomerCypher = `
MERGE (c:Customer {customerId: $customerId})
SET c.name = $name
`

const upsertAccountCypher = `
MERGE (c:Customer {customerId: $customerId})
MERGE (a:Account {accountId: $accountId})
SET a += $props
MERGE (c)-[:OWNS]->(a)
`

const recordEntryCypher = `
MERGE (a:Account {accountId: $accountId})
MERGE (e:LedgerEntry {reference: $reference})
SET e += $props
MERGE (a)-[:RECORDED]->(e)
`

const recordTransferCypher = `
MERGE (src:Account {accountId: $sourceId})
MERGE (dst:Account {accountId: $destinationId})
MERGE (src)-[t:TRANSFERRED {reference: $reference}]->(dst)
SET t.amount = $amount, t.timestamp = $timestamp
`

const recordFlagCypher = `
MERGE (e:LedgerEntry {reference: $reference})
MERGE (f:Flag {reference: $reference, reason: $reason})
SET f.accountId = $accountId, f.burstCount = $burstCount, f.flaggedAt = $flaggedAt
MERGE (e)-[:FLAGGED_AS]->(f)
`

const markBlockedCypher = `
MERGE (a:Account {accountId: $accountId})
SET a.blacklisted = $blocked, a.blacklistUpdatedAt = $updatedAt
`

const counterpartiesCypher = `
MATCH (a:Account {accountId: $accountId})-[t:TRANSFERRED]-(other:Account)
WITH other, t, CASE WHEN startNode(t) = a THEN 'outgoing' ELSE 'incoming' END AS direction
RETURN other.accountId AS accountId,
       direction,
       count(t) AS transfers,
       collect(t.amount) AS amounts
`
