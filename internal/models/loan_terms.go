package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LoanTerms is an immutable description of a permanent loan.
type LoanTerms struct {
	ltvPercent        decimal.Decimal
	ratePercent       decimal.Decimal
	interestOnly      bool
	amortizationYears int
	termYears         int
	amount            decimal.Decimal
}

// NewLoanTerms validates and builds loan terms. Out-of-range values are
// rejected, never clamped.
func NewLoanTerms(ltvPercent, ratePercent decimal.Decimal, interestOnly bool, amortizationYears, termYears int, amount decimal.Decimal) (LoanTerms, error) {
	if err := validatePercent(ltvPercent, ErrInvalidLTV); err != nil {
		return LoanTerms{}, err
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(maxRate) {
		return LoanTerms{}, fmt.Errorf("%w: got %s", ErrInvalidRate, ratePercent.String())
	}
	if amortizationYears <= 0 {
		return LoanTerms{}, fmt.Errorf("%w: got %d", ErrInvalidAmortization, amortizationYears)
	}
	if termYears <= 0 {
		return LoanTerms{}, fmt.Errorf("%w: got %d", ErrInvalidTerm, termYears)
	}
	if amount.IsNegative() {
		return LoanTerms{}, fmt.Errorf("%w: got %s", ErrInvalidLoanAmount, amount.String())
	}

	return LoanTerms{
		ltvPercent:        ltvPercent,
		ratePercent:       ratePercent,
		interestOnly:      interestOnly,
		amortizationYears: amortizationYears,
		termYears:         termYears,
		amount:            amount,
	}, nil
}

// LoanTermsFromPurchasePrice derives the loan amount as price × LTV, rounded to cents.
func LoanTermsFromPurchasePrice(purchasePrice, ltvPercent, ratePercent decimal.Decimal, interestOnly bool, amortizationYears, termYears int) (LoanTerms, error) {
	amount := purchasePrice.Mul(ltvPercent).Div(hundred).Round(2)
	return NewLoanTerms(ltvPercent, ratePercent, interestOnly, amortizationYears, termYears, amount)
}

func (t LoanTerms) LTVPercent() decimal.Decimal  { return t.ltvPercent }
func (t LoanTerms) RatePercent() decimal.Decimal { return t.ratePercent }
func (t LoanTerms) InterestOnly() bool           { return t.interestOnly }
func (t LoanTerms) AmortizationYears() int       { return t.amortizationYears }
func (t LoanTerms) TermYears() int               { return t.termYears }
func (t LoanTerms) Amount() decimal.Decimal      { return t.amount }

// AnnualRate returns the interest rate as a fraction.
func (t LoanTerms) AnnualRate() decimal.Decimal {
	return t.ratePercent.Div(hundred)
}

type loanTermsJSON struct {
	LTVPercent        decimal.Decimal `json:"ltv_percent"`
	RatePercent       decimal.Decimal `json:"rate_percent"`
	InterestOnly      bool            `json:"interest_only"`
	AmortizationYears int             `json:"amortization_years"`
	TermYears         int             `json:"term_years"`
	Amount            decimal.Decimal `json:"amount"`
}

// MarshalJSON encodes the terms for storage.
func (t LoanTerms) MarshalJSON() ([]byte, error) {
	return json.Marshal(loanTermsJSON{
		LTVPercent:        t.ltvPercent,
		RatePercent:       t.ratePercent,
		InterestOnly:      t.interestOnly,
		AmortizationYears: t.amortizationYears,
		TermYears:         t.termYears,
		Amount:            t.amount,
	})
}

// UnmarshalJSON decodes stored terms, re-running construction validation.
func (t *LoanTerms) UnmarshalJSON(data []byte) error {
	var raw loanTermsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode loan terms: %w", err)
	}
	terms, err := NewLoanTerms(raw.LTVPercent, raw.RatePercent, raw.InterestOnly, raw.AmortizationYears, raw.TermYears, raw.Amount)
	if err != nil {
		return err
	}
	*t = terms
	return nil
}
