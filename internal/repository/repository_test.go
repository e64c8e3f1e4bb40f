package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/graph"
)

func TestRepository_UpsertAccount(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	now := time.Now().UTC()
	snap := domain.AccountSnapshot{
		ID:             "C1_SA",
		CustomerID:     "C1",
		Kind:           domain.AccountSavings,
		Balance:        decimal.RequireFromString("500.25"),
		InterestRate:   decimal.RequireFromString("0.02"),
		OverdraftLimit: decimal.Zero,
		CreatedAt:      now,
	}

	if err := repo.UpsertAccount(context.Background(), snap); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	writes := mem.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 write statement, got %d", len(writes))
	}
	call := writes[0]
	if call.Cypher != upsertAccountCypher {
		t.Fatalf("unexpected query\nexpected:\n%s\ngot:\n%s", upsertAccountCypher, call.Cypher)
	}
	if call.Params["accountId"] != "C1_SA" || call.Params["customerId"] != "C1" {
		t.Errorf("unexpected ids: %v / %v", call.Params["accountId"], call.Params["customerId"])
	}
	props, ok := call.Params["props"].(map[string]any)
	if !ok {
		t.Fatalf("expected props map, got %T", call.Params["props"])
	}
	if props["balance"] != "500.25" {
		t.Errorf("balance mismatch: want 500.25 got %v", props["balance"])
	}
	if props["kind"] != "savings" {
		t.Errorf("kind mismatch: want savings got %v", props["kind"])
	}
}

func TestRepository_RecordActivityBatchesTransfer(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("300")
	withdrawal, _ := domain.NewTransaction(2, "C1_SA", "C1_SA", amount, domain.TransactionWithdrawal, ts)
	deposit, _ := domain.NewTransaction(1, "C1_CA", "C1_CA", amount, domain.TransactionDeposit, ts)
	transfer, _ := domain.NewTransaction(3, "C1_SA", "C1_CA", amount, domain.TransactionTransfer, ts)

	act := Activity{
		Accounts: []domain.AccountSnapshot{
			{ID: "C1_SA", CustomerID: "C1", Kind: domain.AccountSavings, Balance: decimal.NewFromInt(100)},
			{ID: "C1_CA", CustomerID: "C1", Kind: domain.AccountChecking, Balance: decimal.NewFromInt(300)},
		},
		Transactions: []domain.Transaction{withdrawal, deposit, transfer},
	}
	if err := repo.RecordActivity(context.Background(), act); err != nil {
		t.Fatalf("record activity: %v", err)
	}

	batches := mem.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected a single transaction batch, got %d", len(batches))
	}
	// 2 account checkpoints + 3 entries + 1 transfer edge.
	if len(batches[0]) != 6 {
		t.Fatalf("expected 6 statements, got %d", len(batches[0]))
	}
	last := batches[0][5]
	if last.Cypher != recordTransferCypher {
		t.Fatalf("expected the transfer edge last, got:\n%s", last.Cypher)
	}
	if last.Params["sourceId"] != "C1_SA" || last.Params["destinationId"] != "C1_CA" {
		t.Errorf("unexpected transfer endpoints: %v", last.Params)
	}
	if last.Params["amount"] != "300" {
		t.Errorf("expected amount 300, got %v", last.Params["amount"])
	}

	entry := batches[0][3]
	if entry.Params["accountId"] != "C1_CA" || entry.Params["reference"] != deposit.Reference {
		t.Errorf("deposit entry keyed on the wrong account: %v", entry.Params)
	}
}

func TestRepository_RecordActivityEmptyIsNoop(t *testing.T) {
	mem := graph.NewMemoryClient()
	if err := New(mem).RecordActivity(context.Background(), Activity{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(mem.Batches()) != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestRepository_RecordFlag(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	tx, _ := domain.NewTransaction(4, "C1_CA", "C1_CA", decimal.NewFromInt(5), domain.TransactionDeposit, time.Now())
	flag := domain.Flag{Transaction: tx, Reason: domain.FlagRapidVelocity, BurstCount: 4, FlaggedAt: time.Now()}
	if err := repo.RecordFlag(context.Background(), flag); err != nil {
		t.Fatalf("record flag: %v", err)
	}
	call := mem.Writes()[0]
	if call.Cypher != recordFlagCypher {
		t.Fatalf("unexpected query: %s", call.Cypher)
	}
	if call.Params["reason"] != "rapid_velocity" || call.Params["burstCount"] != 4 {
		t.Errorf("unexpected params: %v", call.Params)
	}
}

func TestRepository_MarkBlockedPropagatesErrors(t *testing.T) {
	boom := errors.New("neo4j unavailable")
	mem := graph.NewMemoryClient().WithError(boom)

	err := New(mem).MarkBlocked(context.Background(), "C1_SA", true, time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestRepository_Counterparties(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"accountId": "C3_SA", "direction": "incoming", "transfers": int64(1), "amounts": []any{"10"}},
		{"accountId": "C2_CA", "direction": "outgoing", "transfers": int64(3), "amounts": []any{"0.1", "0.2", "900.2"}},
	}})
	repo := New(mem)

	got, err := repo.Counterparties(context.Background(), "C1_SA")
	if err != nil {
		t.Fatalf("counterparties: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 counterparties, got %d", len(got))
	}
	// 0.1 + 0.2 + 900.2 must be exact, and the larger total sorts first.
	if got[0].AccountID != "C2_CA" || got[0].Transfers != 3 || got[0].Total.String() != "900.5" {
		t.Errorf("unexpected first counterparty: %+v", got[0])
	}
	if got[1].AccountID != "C3_SA" || !got[1].Total.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected second counterparty: %+v", got[1])
	}
	reads := mem.Reads()
	if len(reads) != 1 || reads[0].Params["accountId"] != "C1_SA" {
		t.Fatalf("unexpected reads: %+v", reads)
	}
}

func TestRepository_ValidatesIdentifiers(t *testing.T) {
	repo := New(graph.NewMemoryClient())
	if err := repo.UpsertCustomer(context.Background(), domain.Customer{}); err == nil {
		t.Fatalf("expected error for empty customer id")
	}
	if err := repo.UpsertAccount(context.Background(), domain.AccountSnapshot{ID: "X"}); err == nil {
		t.Fatalf("expected error for missing customer id")
	}
	if _, err := repo.Counterparties(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty account id")
	}
}
