// Package models defines the data structures for the underwriting engine.
package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidLTV              = errors.New("ltv percent must be between 0 and 100")
	ErrInvalidRate             = errors.New("interest rate percent must be between 0 and 30")
	ErrInvalidAmortization     = errors.New("amortization years must be greater than 0")
	ErrInvalidTerm             = errors.New("term years must be greater than 0")
	ErrInvalidLoanAmount       = errors.New("loan amount cannot be negative")
	ErrInvalidProductSelection = errors.New("invalid product selection")
	ErrInvalidInputs           = errors.New("invalid calculation inputs")
)

var (
	hundred = decimal.NewFromInt(100)
	maxRate = decimal.NewFromInt(30)
)

// ValidateCalculationInputs rejects inputs the engine cannot underwrite.
// Degenerate but meaningful values (zero units, zero occupancy) are accepted.
func ValidateCalculationInputs(in *CalculationInputs) error {
	if in == nil {
		return fmt.Errorf("%w: inputs are nil", ErrInvalidInputs)
	}
	if in.RentPerUnit.IsNegative() {
		return fmt.Errorf("%w: rent per unit cannot be negative", ErrInvalidInputs)
	}
	if in.UnitCount < 0 {
		return fmt.Errorf("%w: unit count cannot be negative", ErrInvalidInputs)
	}
	if in.OccupancyPercent != nil && (in.OccupancyPercent.IsNegative() || in.OccupancyPercent.GreaterThan(hundred)) {
		return fmt.Errorf("%w: occupancy percent must be between 0 and 100", ErrInvalidInputs)
	}
	if !in.PurchasePrice.IsPositive() {
		return fmt.Errorf("%w: purchase price must be greater than 0", ErrInvalidInputs)
	}
	if in.HoldPeriodYears < 1 {
		return fmt.Errorf("%w: hold period must be at least 1 year", ErrInvalidInputs)
	}
	if len(in.GrowthRatesPercent) < in.HoldPeriodYears {
		return fmt.Errorf("%w: %d growth rates supplied for a %d year hold",
			ErrInvalidInputs, len(in.GrowthRatesPercent), in.HoldPeriodYears)
	}
	if !in.MarketCapRatePercent.IsPositive() {
		return fmt.Errorf("%w: market cap rate must be greater than 0", ErrInvalidInputs)
	}
	if in.DispositionCostPercent.IsNegative() || in.DispositionCostPercent.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("%w: disposition cost percent must be between 0 and 100", ErrInvalidInputs)
	}
	if in.ClosingCosts.IsNegative() {
		return fmt.Errorf("%w: closing costs cannot be negative", ErrInvalidInputs)
	}
	if !NormalizePropertyType(string(in.PropertyType)).IsValid() {
		return fmt.Errorf("%w: unknown property type %q", ErrInvalidInputs, in.PropertyType)
	}
	if in.MarketTier != "" && !in.MarketTier.IsValid() {
		return fmt.Errorf("%w: unknown market tier %q", ErrInvalidInputs, in.MarketTier)
	}

	for name, v := range map[string]*decimal.Decimal{
		"actual other income":       in.ActualOtherIncome,
		"actual operating expenses": in.ActualOperatingExpenses,
		"other income percent":      in.OtherIncomePercent,
		"opex ratio percent":        in.OpExRatioPercent,
	} {
		if v != nil && v.IsNegative() {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalidInputs, name)
		}
	}
	if in.ExpenseLines != nil {
		if err := in.ExpenseLines.Validate(); err != nil {
			return err
		}
	}

	if _, err := in.LoanTerms(); err != nil {
		return err
	}
	return nil
}

func validatePercent(v decimal.Decimal, sentinel error) error {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return fmt.Errorf("%w: got %s", sentinel, v.String())
	}
	return nil
}
