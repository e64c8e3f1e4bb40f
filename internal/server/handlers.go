package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/ledgerwatch/internal/domain"
	"github.com/vanshika/ledgerwatch/internal/fraud"
	"github.com/vanshika/ledgerwatch/internal/ledger"
	"github.com/vanshika/ledgerwatch/internal/service"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	service *service.BankingService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, svc *service.BankingService) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		service: svc,
	}
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type blacklistRequest struct {
	AccountID string `json:"accountId"`
}

type openAccountResponse struct {
	Account domain.AccountSnapshot `json:"account"`
	Flags   []domain.Flag          `json:"flags"`
}

type historyResponse struct {
	AccountID    string               `json:"accountId"`
	Transactions []domain.Transaction `json:"transactions"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func (h *APIHandlers) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload service.CustomerInput
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		c, err := h.service.CreateCustomer(r.Context(), payload)
		if err != nil {
			h.writeServiceError(w, "create customer", err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	case http.MethodGet:
		respondJSON(w, http.StatusOK, newList(h.service.ListCustomers()))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	segments := pathSegments(r.URL.Path, "/customers/")
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	c, err := h.service.GetCustomer(segments[0])
	if err != nil {
		h.writeServiceError(w, "get customer", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *APIHandlers) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload service.AccountInput
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		snap, res, err := h.service.OpenAccount(r.Context(), payload)
		if err != nil {
			h.writeServiceError(w, "open account", err)
			return
		}
		respondJSON(w, http.StatusCreated, openAccountResponse{Account: snap, Flags: nonNilFlags(res.Flags)})
	case http.MethodGet:
		respondJSON(w, http.StatusOK, newList(h.service.ListAccounts()))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleAccount serves /accounts/{id} and its sub-resources.
func (h *APIHandlers) handleAccount(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/accounts/")
	if len(segments) == 0 || len(segments) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	accountID := segments[0]
	action := ""
	if len(segments) == 2 {
		action = segments[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		snap, err := h.service.GetAccount(accountID)
		if err != nil {
			h.writeServiceError(w, "get account", err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	case "deposit", "withdraw":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var payload amountRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var (
			res service.MutationResult
			err error
		)
		if action == "deposit" {
			res, err = h.service.Deposit(r.Context(), accountID, payload.Amount)
		} else {
			res, err = h.service.Withdraw(r.Context(), accountID, payload.Amount)
		}
		if err != nil {
			h.writeServiceError(w, action, err)
			return
		}
		respondJSON(w, http.StatusOK, mutationResponse(res))
	case "interest":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		res, err := h.service.ApplyInterest(r.Context(), accountID)
		if err != nil {
			h.writeServiceError(w, "apply interest", err)
			return
		}
		respondJSON(w, http.StatusOK, mutationResponse(res))
	case "history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.accountHistory(w, r, accountID)
	case "counterparties":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		parties, err := h.service.Counterparties(r.Context(), accountID)
		if err != nil {
			h.writeServiceError(w, "counterparties", err)
			return
		}
		respondJSON(w, http.StatusOK, newList(parties))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandlers) accountHistory(w http.ResponseWriter, r *http.Request, accountID string) {
	query := r.URL.Query()
	start, err := parseTimeParam(query.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339")
		return
	}
	end, err := parseTimeParam(query.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339")
		return
	}

	txs, err := h.service.History(service.HistoryQuery{AccountID: accountID, Start: start, End: end})
	if err != nil {
		h.writeServiceError(w, "history", err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, historyResponse{AccountID: accountID, Transactions: txs})
}

func (h *APIHandlers) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var payload service.TransferInput
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SourceAccountID == "" || payload.DestinationAccountID == "" {
		writeError(w, http.StatusBadRequest, "sourceAccountId and destinationAccountId are required")
		return
	}
	res, err := h.service.Transfer(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, "transfer", err)
		return
	}
	respondJSON(w, http.StatusOK, mutationResponse(res))
}

func (h *APIHandlers) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	query := r.URL.Query()
	min, max := query.Get("min"), query.Get("max")
	if min != "" || max != "" {
		txs, err := h.service.TransactionsByAmount(min, max)
		if err != nil {
			h.writeServiceError(w, "transactions by amount", err)
			return
		}
		respondJSON(w, http.StatusOK, newList(txs))
		return
	}
	limit := parseInt(query.Get("limit"), 50)
	respondJSON(w, http.StatusOK, newList(h.service.RecentTransactions(limit)))
}

func (h *APIHandlers) handleFlags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, newList(h.service.Flags(r.URL.Query().Get("account"))))
}

func (h *APIHandlers) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	report, err := h.service.Scan(r.Context())
	if err != nil {
		h.writeServiceError(w, "scan", err)
		return
	}
	report.Flags = nonNilFlags(report.Flags)
	respondJSON(w, http.StatusOK, report)
}

func (h *APIHandlers) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, newList(h.service.Blacklist()))
	case http.MethodPost:
		var payload blacklistRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if payload.AccountID == "" {
			writeError(w, http.StatusBadRequest, "accountId is required")
			return
		}
		if err := h.service.BlockAccount(r.Context(), payload.AccountID); err != nil {
			h.writeServiceError(w, "block account", err)
			return
		}
		respondJSON(w, http.StatusCreated, statusResponse{Status: "blocked", ID: payload.AccountID})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	segments := pathSegments(r.URL.Path, "/fraud/blacklist/")
	if len(segments) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.service.UnblockAccount(r.Context(), segments[0]); err != nil {
		h.writeServiceError(w, "unblock account", err)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "unblocked", ID: segments[0]})
}

type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

func mutationResponse(res service.MutationResult) service.MutationResult {
	if res.Transactions == nil {
		res.Transactions = []domain.Transaction{}
	}
	if res.Accounts == nil {
		res.Accounts = []domain.AccountSnapshot{}
	}
	res.Flags = nonNilFlags(res.Flags)
	return res
}

func nonNilFlags(flags []domain.Flag) []domain.Flag {
	if flags == nil {
		return []domain.Flag{}
	}
	return flags
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidIdentifier),
		errors.Is(err, ledger.ErrInvalidAccountKind):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrOverdraftExceeded),
		errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrDuplicateCustomer),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrInterestNotSupported):
		return http.StatusConflict
	case errors.Is(err, fraud.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, service.ErrJournalDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandlers) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func pathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
