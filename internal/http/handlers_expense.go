package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"spendlog/internal/auth"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

// expenseInput is the decode target for create and update bodies. The
// id is deliberately absent: it is never accepted from the client.
type expenseInput struct {
	Title  *string         `json:"title"`
	Amount json.RawMessage `json:"amount"`
}

// parseExpenseInput decodes and validates the request body, collecting
// one message per failing field so the client sees everything wrong at
// once.
func parseExpenseInput(r *http.Request) (title string, amount core.Money, fields fieldErrors) {
	fields = fieldErrors{}

	var in expenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fields["body"] = "request body must be valid JSON"
		return "", core.Money{}, fields
	}

	if in.Title == nil {
		fields["title"] = core.ErrTitleRequired.Error()
	} else if err := core.ValidateTitle(*in.Title); err != nil {
		fields["title"] = err.Error()
	} else {
		title = *in.Title
	}

	if len(in.Amount) == 0 {
		fields["amount"] = "amount is required"
	} else if parsed, err := core.ParseAmountJSON(in.Amount); err != nil {
		fields["amount"] = err.Error()
	} else {
		amount = parsed
	}

	if len(fields) == 0 {
		fields = nil
	}
	return title, amount, fields
}

// expenseID parses the numeric path id. A non-numeric or non-positive
// id behaves exactly like a missing row.
func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	expenses, err := s.repo.ListExpenses(r.Context(), ident.Subject)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject,
			applog.FieldOperation, applog.OpList)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (s *Server) handleTotalSpent(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	cents, err := s.repo.TotalCents(r.Context(), ident.Subject)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to sum expenses",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total": core.Money{Cents: cents}.String()})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, ok := expenseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), ident.Subject, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to get expense",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject,
			applog.FieldExpenseID, id)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	title, amount, fields := parseExpenseInput(r)
	if fields != nil {
		writeValidationError(w, fields)
		return
	}

	// Owner always comes from the session, never the payload.
	expense, err := s.repo.CreateExpense(r.Context(), ident.Subject, title, amount)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create expense",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject,
			applog.FieldAmountCents, amount.Cents,
			applog.FieldOperation, applog.OpCreate)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": expense})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, ok := expenseID(r)
	if !ok {
		writeNotFound(w)
		return
	}
	title, amount, fields := parseExpenseInput(r)
	if fields != nil {
		writeValidationError(w, fields)
		return
	}

	expense, err := s.repo.UpdateExpense(r.Context(), ident.Subject, id, title, amount)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to update expense",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject,
			applog.FieldExpenseID, id,
			applog.FieldOperation, applog.OpUpdate)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	id, ok := expenseID(r)
	if !ok {
		writeNotFound(w)
		return
	}

	err := s.repo.DeleteExpense(r.Context(), ident.Subject, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete expense",
			applog.FieldError, err,
			applog.FieldUserID, ident.Subject,
			applog.FieldExpenseID, id,
			applog.FieldOperation, applog.OpDelete)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted"})
}
