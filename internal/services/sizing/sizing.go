// Package sizing sizes permanent debt against competing LTV and DSCR limits.
package sizing

import (
	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
)

// Params are the deal values and thresholds the sizer needs. Product
// occupancy floors must already be reflected in NOI.
type Params struct {
	NOI               decimal.Decimal
	PurchasePrice     decimal.Decimal
	MaxLTVPercent     decimal.Decimal
	MinDSCR           decimal.Decimal
	RatePercent       decimal.Decimal
	AmortizationYears int
	InterestOnly      bool
}

// LTVBasedLoan is the largest loan the LTV limit allows.
func LTVBasedLoan(purchasePrice, maxLTVPercent decimal.Decimal) decimal.Decimal {
	return purchasePrice.Mul(maxLTVPercent).Div(hundred).Round(2)
}

// DSCRBasedLoan is the loan whose annual debt service equals NOI / minDSCR.
// Non-positive NOI supports no debt.
func DSCRBasedLoan(p Params) decimal.Decimal {
	if !p.NOI.IsPositive() {
		return decimal.Zero
	}
	// No DSCR floor or free interest-only money leave DSCR unconstrained.
	if !p.MinDSCR.IsPositive() || (p.InterestOnly && p.RatePercent.IsZero()) {
		return LTVBasedLoan(p.PurchasePrice, p.MaxLTVPercent)
	}

	targetDebtService := p.NOI.Div(p.MinDSCR)
	if p.InterestOnly {
		return targetDebtService.Div(p.RatePercent.Div(hundred)).Round(2)
	}
	monthly := targetDebtService.Div(twelve)
	return PrincipalFromPayment(monthly, p.RatePercent, p.AmortizationYears).Round(2)
}

// Size returns both constraint loans and the binding one. Ties resolve to LTV;
// a deal without positive NOI is always DSCR constrained at zero.
func Size(p Params) models.LoanSizing {
	ltvLoan := LTVBasedLoan(p.PurchasePrice, p.MaxLTVPercent)
	dscrLoan := DSCRBasedLoan(p)

	sizing := models.LoanSizing{
		LTVBasedLoan:  ltvLoan,
		DSCRBasedLoan: dscrLoan,
		MaxLTVPercent: p.MaxLTVPercent,
		MinDSCR:       p.MinDSCR,
	}
	if p.NOI.IsPositive() && ltvLoan.LessThanOrEqual(dscrLoan) {
		sizing.MaxLoan = ltvLoan
		sizing.ConstrainingTest = models.ConstrainingLTV
	} else {
		sizing.MaxLoan = dscrLoan
		sizing.ConstrainingTest = models.ConstrainingDSCR
	}
	return sizing
}

// DSCR is NOI over annual debt service, or zero when there is no debt service.
func DSCR(noi, annualDebtService decimal.Decimal) decimal.Decimal {
	if !annualDebtService.IsPositive() {
		return decimal.Zero
	}
	return noi.Div(annualDebtService)
}
