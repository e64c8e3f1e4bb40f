package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput marks malformed caller input (unparseable amounts, bad kinds).
var ErrInvalidInput = errors.New("invalid input")

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
)

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// normalizeID trims an identifier and rejects characters that would not
// survive a URL path segment.
func normalizeID(field, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", nil
	}
	if !identifierRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %s %q contains unsupported characters", ErrInvalidInput, field, raw)
	}
	return id, nil
}

// parseAmount parses a decimal string such as "1500.25". Sign checks are left
// to the ledger so that non-positive amounts surface as ledger.ErrInvalidAmount.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", ErrInvalidInput, field, raw)
	}
	return d, nil
}

// parseOptionalAmount returns nil for empty input.
func parseOptionalAmount(field, raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := parseAmount(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
