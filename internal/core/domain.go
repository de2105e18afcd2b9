package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMinLen = 3
	TitleMaxLen = 255
)

// Expense is a single spending record owned by exactly one user.
// UserID is always taken from the authenticated session, never from
// client input, and every storage operation filters on it.
type Expense struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"ownerId"`
	Title     string    `json:"title"`
	Amount    Money     `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrAmountPrecision = errors.New("amount exceeds 12-digit/2-decimal precision")
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleLength     = errors.New("title must be between 3 and 255 characters")
)

func (e Expense) Validate() error {
	if err := ValidateTitle(e.Title); err != nil {
		return err
	}
	return e.Amount.Validate()
}

// ValidateTitle enforces the 3..255 length contract. Length is counted
// in characters, not bytes, so multibyte titles get the full range.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if n := utf8.RuneCountInString(title); n < TitleMinLen || n > TitleMaxLen {
		return ErrTitleLength
	}
	return nil
}
