package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ledgerwatch/internal/domain"
)

type scriptedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newScriptedClock() *scriptedClock {
	return &scriptedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *scriptedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *scriptedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *scriptedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T) (*Ledger, *scriptedClock) {
	t.Helper()
	clock := newScriptedClock()
	l := New(DefaultOptions()).WithClock(clock.Now)
	if _, err := l.AddCustomer("C1", "Ada"); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	return l, clock
}

func openAccount(t *testing.T, l *Ledger, id string, kind domain.AccountKind, opening string) *Account {
	t.Helper()
	if _, err := l.OpenAccount(OpenAccountParams{
		ID:             id,
		CustomerID:     "C1",
		Kind:           kind,
		OpeningBalance: dec(opening),
	}); err != nil {
		t.Fatalf("open account %s: %v", id, err)
	}
	acct, err := l.Account(id)
	if err != nil {
		t.Fatalf("lookup %s: %v", id, err)
	}
	return acct
}

func assertBalance(t *testing.T, acct *Account, want string) {
	t.Helper()
	if got := acct.Balance(); !got.Equal(dec(want)) {
		t.Fatalf("account %s: expected balance %s, got %s", acct.ID(), want, got)
	}
}

func countType(history []domain.Transaction, typ domain.TransactionType) int {
	n := 0
	for _, tx := range history {
		if tx.Type == typ {
			n++
		}
	}
	return n
}

func TestLedger_EndToEndScenario(t *testing.T) {
	l, _ := newTestLedger(t)
	savings := openAccount(t, l, "C1_SA", domain.AccountSavings, "500")
	checking := openAccount(t, l, "C1_CA", domain.AccountChecking, "0")

	if _, err := savings.Withdraw(dec("100")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	assertBalance(t, savings, "400")
	if n := countType(savings.History(), domain.TransactionWithdrawal); n != 1 {
		t.Fatalf("expected 1 withdrawal record, got %d", n)
	}

	if _, err := savings.Withdraw(dec("1000")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	assertBalance(t, savings, "400")

	receipt, err := l.Transfer("C1_SA", "C1_CA", dec("300"))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	assertBalance(t, savings, "100")
	assertBalance(t, checking, "300")

	if receipt.Transfer.Type != domain.TransactionTransfer {
		t.Errorf("expected transfer record, got %s", receipt.Transfer.Type)
	}
	if receipt.Transfer.DestinationAccountID != "C1_CA" {
		t.Errorf("expected transfer destination C1_CA, got %s", receipt.Transfer.DestinationAccountID)
	}
	if checking.Snapshot().OverdraftLimit.Cmp(dec("1000")) != 0 {
		t.Errorf("expected default overdraft 1000, got %s", checking.Snapshot().OverdraftLimit)
	}
}

func TestAccount_DepositRejectsNonPositive(t *testing.T) {
	l, _ := newTestLedger(t)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "0")

	for _, amount := range []string{"0", "-5"} {
		if _, err := acct.Deposit(dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("deposit %s: expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := acct.Withdraw(dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("withdraw %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(acct.History()) != 0 {
		t.Fatalf("expected empty history, got %d records", len(acct.History()))
	}
}

func TestAccount_SavingsSolvencyBoundary(t *testing.T) {
	l, _ := newTestLedger(t)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "250")

	if _, err := acct.Withdraw(dec("250.01")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	assertBalance(t, acct, "250")

	if _, err := acct.Withdraw(dec("250")); err != nil {
		t.Fatalf("withdrawing the full balance should succeed: %v", err)
	}
	assertBalance(t, acct, "0")
}

func TestAccount_CheckingOverdraftBoundary(t *testing.T) {
	l, _ := newTestLedger(t)
	acct := openAccount(t, l, "C1_CA", domain.AccountChecking, "0")

	if _, err := acct.Withdraw(dec("600")); err != nil {
		t.Fatalf("withdraw within overdraft: %v", err)
	}
	assertBalance(t, acct, "-600")

	if _, err := acct.Withdraw(dec("400.01")); !errors.Is(err, ErrOverdraftExceeded) {
		t.Fatalf("expected ErrOverdraftExceeded, got %v", err)
	}
	assertBalance(t, acct, "-600")

	if _, err := acct.Withdraw(dec("400")); err != nil {
		t.Fatalf("withdraw to the overdraft limit: %v", err)
	}
	assertBalance(t, acct, "-1000")
}

func TestAccount_BalanceEquation(t *testing.T) {
	l, clock := newTestLedger(t)
	acct := openAccount(t, l, "C1_CA", domain.AccountChecking, "0")

	ops := []struct {
		deposit bool
		amount  string
	}{
		{true, "120.50"}, {false, "20.25"}, {true, "9.75"}, {false, "500"}, {true, "1000"}, {false, "0.01"},
	}
	for _, op := range ops {
		clock.Advance(time.Second)
		var err error
		if op.deposit {
			_, err = acct.Deposit(dec(op.amount))
		} else {
			_, err = acct.Withdraw(dec(op.amount))
		}
		if err != nil {
			t.Fatalf("op %+v: %v", op, err)
		}
	}

	sum := decimal.Zero
	history := acct.History()
	for i, tx := range history {
		switch tx.Type {
		case domain.TransactionDeposit:
			sum = sum.Add(tx.Amount)
		case domain.TransactionWithdrawal:
			sum = sum.Sub(tx.Amount)
		}
		if i > 0 && tx.Timestamp.Before(history[i-1].Timestamp) {
			t.Fatalf("record %d is older than its predecessor", i)
		}
		if !tx.Amount.IsPositive() {
			t.Fatalf("record %d carries non-positive amount %s", i, tx.Amount)
		}
	}
	if !sum.Equal(acct.Balance()) {
		t.Fatalf("expected balance %s to equal history sum %s", acct.Balance(), sum)
	}
	if len(history) != len(ops) {
		t.Fatalf("expected %d records, got %d", len(ops), len(history))
	}
}

func TestAccount_TimestampsNeverGoBackwards(t *testing.T) {
	l, clock := newTestLedger(t)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "0")

	first, err := acct.Deposit(dec("10"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(-time.Hour)
	second, err := acct.Deposit(dec("10"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if second.Timestamp.Before(first.Timestamp) {
		t.Fatalf("expected %s >= %s", second.Timestamp, first.Timestamp)
	}
	if first.ID != "1" || second.ID != "2" {
		t.Fatalf("expected sequential ids 1,2 got %s,%s", first.ID, second.ID)
	}
}

func TestAccount_TransferFailureLeavesBothUnchanged(t *testing.T) {
	l, _ := newTestLedger(t)
	src := openAccount(t, l, "C1_SA", domain.AccountSavings, "100")
	dst := openAccount(t, l, "C1_CA", domain.AccountChecking, "50")

	if _, err := src.Transfer(dec("100.01"), dst); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	assertBalance(t, src, "100")
	assertBalance(t, dst, "50")
	if len(src.History()) != 1 || len(dst.History()) != 1 {
		t.Fatalf("expected histories untouched, got %d and %d", len(src.History()), len(dst.History()))
	}

	for _, amount := range []string{"0", "-5"} {
		if _, err := src.Transfer(dec(amount), dst); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("transfer %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	assertBalance(t, src, "100")
	assertBalance(t, dst, "50")

	// Checking source: 50 balance + 1000 overdraft.
	if _, err := dst.Transfer(dec("1050.01"), src); !errors.Is(err, ErrOverdraftExceeded) {
		t.Fatalf("expected ErrOverdraftExceeded, got %v", err)
	}
	assertBalance(t, src, "100")
	assertBalance(t, dst, "50")
	if len(src.History()) != 1 || len(dst.History()) != 1 {
		t.Fatalf("expected histories untouched, got %d and %d", len(src.History()), len(dst.History()))
	}
	if l.TransactionCount() != 2 {
		t.Fatalf("expected only the opening deposits in the stream, got %d", l.TransactionCount())
	}

	if _, err := dst.Transfer(dec("1050"), src); err != nil {
		t.Fatalf("transfer up to the overdraft limit: %v", err)
	}
	assertBalance(t, src, "1150")
	assertBalance(t, dst, "-1000")

	if _, err := src.Transfer(dec("10"), src); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if _, err := l.Transfer("C1_SA", "missing", dec("10")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccount_TransferRecords(t *testing.T) {
	l, _ := newTestLedger(t)
	src := openAccount(t, l, "C1_CA", domain.AccountChecking, "0")
	dst := openAccount(t, l, "C1_SA", domain.AccountSavings, "0")

	receipt, err := src.Transfer(dec("700"), dst)
	if err != nil {
		t.Fatalf("transfer into overdraft: %v", err)
	}
	assertBalance(t, src, "-700")
	assertBalance(t, dst, "700")

	srcHistory := src.History()
	if len(srcHistory) != 2 {
		t.Fatalf("expected 2 source records, got %d", len(srcHistory))
	}
	if srcHistory[0].Type != domain.TransactionWithdrawal || srcHistory[1].Type != domain.TransactionTransfer {
		t.Fatalf("unexpected source record types %s, %s", srcHistory[0].Type, srcHistory[1].Type)
	}
	if srcHistory[1].ID != receipt.Transfer.ID || receipt.Transfer.ID != "2" {
		t.Fatalf("expected transfer record id 2, got %s", receipt.Transfer.ID)
	}

	dstHistory := dst.History()
	if len(dstHistory) != 1 || dstHistory[0].Type != domain.TransactionDeposit {
		t.Fatalf("expected a single deposit on destination, got %+v", dstHistory)
	}
	if l.TransactionCount() != 3 {
		t.Fatalf("expected 3 records in the stream, got %d", l.TransactionCount())
	}
}

func TestAccount_HistoryBetweenInclusive(t *testing.T) {
	l, clock := newTestLedger(t)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "0")

	base := clock.Now()
	for i := 0; i < 5; i++ {
		clock.Set(base.Add(time.Duration(i) * time.Minute))
		if _, err := acct.Deposit(dec("1")); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	got := acct.HistoryBetween(base.Add(time.Minute), base.Add(3*time.Minute))
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, tx := range got {
		want := base.Add(time.Duration(i+1) * time.Minute)
		if !tx.Timestamp.Equal(want) {
			t.Errorf("record %d: expected %s, got %s", i, want, tx.Timestamp)
		}
	}

	if got := acct.HistoryBetween(base.Add(10*time.Minute), base.Add(20*time.Minute)); len(got) != 0 {
		t.Fatalf("expected no records outside range, got %d", len(got))
	}
}

func TestAccount_ApplyInterest(t *testing.T) {
	l, _ := newTestLedger(t)
	savings := openAccount(t, l, "C1_SA", domain.AccountSavings, "1000")
	checking := openAccount(t, l, "C1_CA", domain.AccountChecking, "1000")

	tx, credited, err := savings.ApplyInterest()
	if err != nil {
		t.Fatalf("apply interest: %v", err)
	}
	if !credited || !tx.Amount.Equal(dec("20")) {
		t.Fatalf("expected 20 credited, got %s (credited=%v)", tx.Amount, credited)
	}
	assertBalance(t, savings, "1020")

	if _, _, err := checking.ApplyInterest(); !errors.Is(err, ErrInterestNotSupported) {
		t.Fatalf("expected ErrInterestNotSupported, got %v", err)
	}

	empty := openAccount(t, l, "C1_SA2", domain.AccountSavings, "0")
	if _, credited, err := empty.ApplyInterest(); err != nil || credited {
		t.Fatalf("expected no-op on empty account, got credited=%v err=%v", credited, err)
	}
}

func TestAccount_GuardRejectsBeforeMutation(t *testing.T) {
	errBlocked := errors.New("blocked")
	l, _ := newTestLedger(t)
	src := openAccount(t, l, "C1_SA", domain.AccountSavings, "100")
	dst := openAccount(t, l, "C1_CA", domain.AccountChecking, "0")

	l.WithAccountGuard(func(id string) error {
		if id == "C1_CA" {
			return errBlocked
		}
		return nil
	})

	if _, err := src.Transfer(dec("10"), dst); !errors.Is(err, errBlocked) {
		t.Fatalf("expected guard error, got %v", err)
	}
	assertBalance(t, src, "100")
	assertBalance(t, dst, "0")
	if _, err := src.Deposit(dec("5")); err != nil {
		t.Fatalf("unblocked account should accept deposits: %v", err)
	}
}

func TestLedger_RejectedOpeningDepositLeavesNoAccount(t *testing.T) {
	errBlocked := errors.New("blocked")
	l, _ := newTestLedger(t)

	assertUnregistered := func() {
		t.Helper()
		if _, err := l.Account("C1_SA"); !errors.Is(err, ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound after a rejected opening, got %v", err)
		}
		c, err := l.Customer("C1")
		if err != nil {
			t.Fatalf("customer: %v", err)
		}
		if len(c.AccountIDs) != 0 {
			t.Fatalf("expected no accounts on the customer, got %v", c.AccountIDs)
		}
		if l.TransactionCount() != 0 {
			t.Fatalf("expected an empty stream, got %d", l.TransactionCount())
		}
	}
	params := OpenAccountParams{ID: "C1_SA", CustomerID: "C1", Kind: domain.AccountSavings, OpeningBalance: dec("100")}

	l.WithAccountGuard(func(string) error { return errBlocked })
	if _, err := l.OpenAccount(params); !errors.Is(err, errBlocked) {
		t.Fatalf("expected guard error, got %v", err)
	}
	assertUnregistered()

	// Allowed when the account is registered, rejected by the time the
	// deposit runs.
	calls := 0
	l.WithAccountGuard(func(string) error {
		calls++
		if calls > 1 {
			return errBlocked
		}
		return nil
	})
	if _, err := l.OpenAccount(params); !errors.Is(err, errBlocked) {
		t.Fatalf("expected guard error from the deposit, got %v", err)
	}
	assertUnregistered()

	l.WithAccountGuard(nil)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "100")
	assertBalance(t, acct, "100")
}

func TestLedger_RegistryErrors(t *testing.T) {
	l, _ := newTestLedger(t)

	if _, err := l.AddCustomer("C1", "Again"); !errors.Is(err, ErrDuplicateCustomer) {
		t.Fatalf("expected ErrDuplicateCustomer, got %v", err)
	}
	if _, err := l.AddCustomer("  ", "Blank"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if _, err := l.OpenAccount(OpenAccountParams{CustomerID: "nobody", Kind: domain.AccountSavings}); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if _, err := l.OpenAccount(OpenAccountParams{CustomerID: "C1", Kind: "brokerage"}); !errors.Is(err, ErrInvalidAccountKind) {
		t.Fatalf("expected ErrInvalidAccountKind, got %v", err)
	}

	snap, err := l.OpenAccount(OpenAccountParams{CustomerID: "C1", Kind: domain.AccountSavings})
	if err != nil {
		t.Fatalf("open derived account: %v", err)
	}
	if snap.ID != "C1_SA" {
		t.Fatalf("expected derived id C1_SA, got %s", snap.ID)
	}
	if _, err := l.OpenAccount(OpenAccountParams{CustomerID: "C1", Kind: domain.AccountSavings}); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}

	if _, err := l.CustomerAccount("C1", "C1_SA"); err != nil {
		t.Fatalf("customer account lookup: %v", err)
	}
	if _, err := l.CustomerAccount("C1", "C1_CA"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := l.Deposit("missing", dec("1")); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	customer, err := l.Customer("C1")
	if err != nil {
		t.Fatalf("customer lookup: %v", err)
	}
	customer.AccountIDs[0] = "tampered"
	again, _ := l.Customer("C1")
	if again.AccountIDs[0] != "C1_SA" {
		t.Fatalf("customer copy leaked internal state")
	}
}

func TestLedger_StreamOrdering(t *testing.T) {
	l, clock := newTestLedger(t)
	a := openAccount(t, l, "C1_A", domain.AccountChecking, "0")
	b := openAccount(t, l, "C1_B", domain.AccountChecking, "0")

	base := clock.Now()
	clock.Set(base.Add(2 * time.Second))
	if _, err := a.Deposit(dec("200")); err != nil {
		t.Fatal(err)
	}
	clock.Set(base.Add(1 * time.Second))
	if _, err := b.Deposit(dec("100")); err != nil {
		t.Fatal(err)
	}
	clock.Set(base.Add(3 * time.Second))
	if _, err := b.Deposit(dec("300")); err != nil {
		t.Fatal(err)
	}

	recent := l.RecentTransactions(0)
	want := []string{"300", "200", "100"}
	if len(recent) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recent))
	}
	for i, amount := range want {
		if !recent[i].Amount.Equal(dec(amount)) {
			t.Errorf("position %d: expected %s, got %s", i, amount, recent[i].Amount)
		}
	}

	if top := l.RecentTransactions(1); len(top) != 1 || !top[0].Amount.Equal(dec("300")) {
		t.Fatalf("expected newest record only, got %+v", top)
	}

	ranged := l.TransactionsByAmount(dec("100"), dec("200"))
	if len(ranged) != 2 || !ranged[0].Amount.Equal(dec("200")) || !ranged[1].Amount.Equal(dec("100")) {
		t.Fatalf("expected [200 100] inclusive newest first, got %+v", ranged)
	}
	if got := l.TransactionsByAmount(dec("500"), dec("1")); got != nil {
		t.Fatalf("expected nil for inverted range, got %+v", got)
	}
}

func TestLedger_ConcurrentOpposingTransfers(t *testing.T) {
	l, _ := newTestLedger(t)
	a := openAccount(t, l, "C1_A", domain.AccountSavings, "1000")
	b := openAccount(t, l, "C1_B", domain.AccountSavings, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = a.Transfer(dec("7"), b)
		}()
		go func() {
			defer wg.Done()
			_, _ = b.Transfer(dec("3"), a)
		}()
	}
	wg.Wait()

	total := a.Balance().Add(b.Balance())
	if !total.Equal(dec("2000")) {
		t.Fatalf("expected total 2000 to be conserved, got %s", total)
	}
	if !a.Balance().Equal(dec("800")) || !b.Balance().Equal(dec("1200")) {
		t.Fatalf("expected 800/1200, got %s/%s", a.Balance(), b.Balance())
	}
}

func TestLedger_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	l, _ := newTestLedger(t)
	acct := openAccount(t, l, "C1_SA", domain.AccountSavings, "100")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := acct.Withdraw(dec("10")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful withdrawals, got %d", succeeded)
	}
	assertBalance(t, acct, "0")
}
