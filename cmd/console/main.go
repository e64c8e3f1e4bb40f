package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/vanshika/ledgerwatch/internal/app"
	"github.com/vanshika/ledgerwatch/internal/config"
	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/ledger"
	"github.com/vanshika/ledgerwatch/internal/logging"
	"github.com/vanshika/ledgerwatch/internal/service"
)

const (
	actionCreate    = "create"
	actionBalance   = "balance"
	actionDeposit   = "deposit"
	actionWithdraw  = "withdraw"
	actionTransfer  = "transfer"
	actionHistory   = "history"
	actionInterest  = "interest"
	actionFlags     = "flags"
	actionBlacklist = "blacklist"
	actionExit      = "exit"
)

type console struct {
	svc *service.BankingService
	out io.Writer
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// The menu owns stdout; logs go to stderr and default to warnings only.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "warn"
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging).With("component", "console")

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	c := &console{svc: a.Service, out: os.Stdout}
	if err := c.loop(ctx); err != nil {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
}

func (c *console) loop(ctx context.Context) error {
	for {
		var action string
		menu := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Banking System Menu").
				Options(
					huh.NewOption("Create an account", actionCreate),
					huh.NewOption("Check balance", actionBalance),
					huh.NewOption("Deposit", actionDeposit),
					huh.NewOption("Withdraw", actionWithdraw),
					huh.NewOption("Transfer", actionTransfer),
					huh.NewOption("Check transaction history", actionHistory),
					huh.NewOption("Apply interest", actionInterest),
					huh.NewOption("Review fraud flags", actionFlags),
					huh.NewOption("Blacklist an account", actionBlacklist),
					huh.NewOption("Exit", actionExit),
				).
				Value(&action),
		))
		if err := menu.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				action = actionExit
			} else {
				return err
			}
		}

		if action == actionExit {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
		if err := c.dispatch(ctx, action); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				continue
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

func (c *console) dispatch(ctx context.Context, action string) error {
	switch action {
	case actionCreate:
		return c.createAccount(ctx)
	case actionBalance:
		return c.balance()
	case actionDeposit, actionWithdraw:
		return c.cash(ctx, action)
	case actionTransfer:
		return c.transfer(ctx)
	case actionHistory:
		return c.history()
	case actionInterest:
		return c.interest(ctx)
	case actionFlags:
		return c.flags()
	case actionBlacklist:
		return c.blacklist(ctx)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (c *console) createAccount(ctx context.Context) error {
	var customerID, name, kind, opening string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Customer ID").Value(&customerID).Validate(required),
		huh.NewInput().Title("Customer name").Value(&name),
		huh.NewSelect[string]().Title("Account type").
			Options(
				huh.NewOption("Savings", string(domain.AccountSavings)),
				huh.NewOption("Checking", string(domain.AccountChecking)),
			).
			Value(&kind),
		huh.NewInput().Title("Initial balance").Placeholder("0.00").Value(&opening),
	))
	if err := form.Run(); err != nil {
		return err
	}

	_, err := c.svc.CreateCustomer(ctx, service.CustomerInput{ID: customerID, Name: name})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateCustomer) {
		return err
	}
	snap, res, err := c.svc.OpenAccount(ctx, service.AccountInput{
		CustomerID:     customerID,
		Kind:           kind,
		OpeningBalance: strings.TrimSpace(opening),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account %s created with balance $%s.\n", snap.ID, snap.Balance.StringFixed(2))
	c.printFlags(res.Flags)
	return nil
}

func (c *console) balance() error {
	accountID, err := askAccount("Account number")
	if err != nil {
		return err
	}
	snap, err := c.svc.GetAccount(accountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Current balance: $%s\n", snap.Balance.StringFixed(2))
	return nil
}

func (c *console) cash(ctx context.Context, action string) error {
	var accountID, amount string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Account number").Value(&accountID).Validate(required),
		huh.NewInput().Title(strings.ToUpper(action[:1])+action[1:]+" amount").Value(&amount).Validate(required),
	))
	if err := form.Run(); err != nil {
		return err
	}

	var (
		res service.MutationResult
		err error
	)
	if action == actionDeposit {
		res, err = c.svc.Deposit(ctx, strings.TrimSpace(accountID), amount)
	} else {
		res, err = c.svc.Withdraw(ctx, strings.TrimSpace(accountID), amount)
	}
	if err != nil {
		return err
	}
	c.printResult(res)
	return nil
}

func (c *console) transfer(ctx context.Context) error {
	var in service.TransferInput
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Source account number").Value(&in.SourceAccountID).Validate(required),
		huh.NewInput().Title("Destination account number").Value(&in.DestinationAccountID).Validate(required),
		huh.NewInput().Title("Transfer amount").Value(&in.Amount).Validate(required),
	))
	if err := form.Run(); err != nil {
		return err
	}
	in.SourceAccountID = strings.TrimSpace(in.SourceAccountID)
	in.DestinationAccountID = strings.TrimSpace(in.DestinationAccountID)

	res, err := c.svc.Transfer(ctx, in)
	if err != nil {
		return err
	}
	c.printResult(res)
	return nil
}

func (c *console) history() error {
	accountID, err := askAccount("Account number")
	if err != nil {
		return err
	}
	txs, err := c.svc.History(service.HistoryQuery{AccountID: accountID})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Transaction History:")
	for _, tx := range txs {
		fmt.Fprintf(c.out, "ID: %s, Type: %s, Amount: $%s, Time: %s\n",
			tx.ID, tx.Type, tx.Amount.StringFixed(2), tx.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (c *console) interest(ctx context.Context) error {
	accountID, err := askAccount("Savings account number")
	if err != nil {
		return err
	}
	res, err := c.svc.ApplyInterest(ctx, accountID)
	if err != nil {
		return err
	}
	c.printResult(res)
	return nil
}

func (c *console) flags() error {
	flags := c.svc.Flags("")
	if len(flags) == 0 {
		fmt.Fprintln(c.out, "No flagged transactions.")
		return nil
	}
	c.printFlags(flags)
	return nil
}

func (c *console) blacklist(ctx context.Context) error {
	accountID, err := askAccount("Account number to block")
	if err != nil {
		return err
	}
	if err := c.svc.BlockAccount(ctx, accountID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Blocked account %s\n", accountID)
	return nil
}

func (c *console) printResult(res service.MutationResult) {
	for _, tx := range res.Transactions {
		fmt.Fprintf(c.out, "Transaction executed: %s of amount %s\n", tx.Type, tx.Amount.StringFixed(2))
	}
	for _, snap := range res.Accounts {
		fmt.Fprintf(c.out, "  %s balance: $%s\n", snap.ID, snap.Balance.StringFixed(2))
	}
	c.printFlags(res.Flags)
}

func (c *console) printFlags(flags []domain.Flag) {
	for _, f := range flags {
		switch f.Reason {
		case domain.FlagLargeAmount:
			fmt.Fprintf(c.out, "Flagged transaction: %s for exceeding the large-amount threshold\n", f.Transaction.ID)
		case domain.FlagRapidVelocity:
			fmt.Fprintf(c.out, "Flagged transaction: %s for rapid multiple transactions (%d in a burst)\n", f.Transaction.ID, f.BurstCount)
		default:
			fmt.Fprintf(c.out, "Flagged transaction: %s (%s)\n", f.Transaction.ID, f.Reason)
		}
	}
}

func askAccount(title string) (string, error) {
	var accountID string
	err := huh.NewInput().Title(title).Value(&accountID).Validate(required).Run()
	return strings.TrimSpace(accountID), err
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}
