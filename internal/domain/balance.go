package domain

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// CarbonCredits is an organization's balance. Total counts every credit ever
// realized, Available is spendable, Traded is the cumulative amount moved out
// through transfers that have not been reversed.
type CarbonCredits struct {
	Total     decimal.Decimal
	Available decimal.Decimal
	Traded    decimal.Decimal
}

// Credit realizes amount on the balance.
func (c *CarbonCredits) Credit(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	c.Total = c.Total.Add(amount)
	c.Available = c.Available.Add(amount)
	return nil
}

// DebitForTransfer reserves amount for an outgoing transfer.
func (c *CarbonCredits) DebitForTransfer(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if c.Available.LessThan(amount) {
		return apperrors.NewInsufficientBalance(map[string]any{
			"available": c.Available.String(),
			"requested": amount.String(),
		})
	}
	c.Available = c.Available.Sub(amount)
	c.Traded = c.Traded.Add(amount)
	return nil
}

// ReverseDebit undoes a DebitForTransfer of the same amount.
func (c *CarbonCredits) ReverseDebit(amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if c.Traded.LessThan(amount) {
		return apperrors.NewInternalError(errInvariant("reverse exceeds traded"))
	}
	c.Available = c.Available.Add(amount)
	c.Traded = c.Traded.Sub(amount)
	return nil
}

// Check verifies 0 <= available <= total, traded >= 0 and that every
// credit is either available or traded.
func (c CarbonCredits) Check() error {
	switch {
	case c.Available.IsNegative():
		return errInvariant("available is negative")
	case c.Available.GreaterThan(c.Total):
		return errInvariant("available exceeds total")
	case c.Traded.IsNegative():
		return errInvariant("traded is negative")
	case !c.Available.Add(c.Traded).Equal(c.Total):
		return errInvariant("available + traded != total")
	}
	return nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewValidationError("amount must be positive", map[string]any{"amount": amount.String()})
	}
	return nil
}

type errInvariant string

func (e errInvariant) Error() string { return "balance invariant violated: " + string(e) }
