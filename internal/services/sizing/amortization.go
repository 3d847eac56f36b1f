package sizing

import (
	"github.com/shopspring/decimal"

	"underwriting-engine/internal/models"
)

// powPlaces bounds the digits kept while compounding so long schedules stay cheap.
const powPlaces = 24

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// pow raises base to a non-negative integer power by repeated squaring.
func pow(base decimal.Decimal, exp int) decimal.Decimal {
	result := one
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(powPlaces)
		}
		base = base.Mul(base).Round(powPlaces)
		exp >>= 1
	}
	return result
}

// MonthlyRate converts an annual percentage rate to a monthly fraction.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(hundred).Div(twelve)
}

// MonthlyPayment is the level payment that retires principal over amortizationYears.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, amortizationYears int) decimal.Decimal {
	n := amortizationYears * 12
	if n <= 0 || principal.IsZero() {
		return decimal.Zero
	}
	r := MonthlyRate(annualRatePercent)
	if r.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}

	// P * r * f / (f - 1), f = (1+r)^n
	f := pow(one.Add(r), n)
	return principal.Mul(r).Mul(f).Div(f.Sub(one))
}

// PrincipalFromPayment inverts MonthlyPayment: the principal a level monthly
// payment can carry over amortizationYears.
func PrincipalFromPayment(payment, annualRatePercent decimal.Decimal, amortizationYears int) decimal.Decimal {
	n := amortizationYears * 12
	if n <= 0 || !payment.IsPositive() {
		return decimal.Zero
	}
	r := MonthlyRate(annualRatePercent)
	if r.IsZero() {
		return payment.Mul(decimal.NewFromInt(int64(n)))
	}

	// payment * (f - 1) / (r * f)
	f := pow(one.Add(r), n)
	return payment.Mul(f.Sub(one)).Div(r.Mul(f))
}

// AnnualDebtService is twelve level payments, or a year of interest for
// interest-only loans. Rounded to cents.
func AnnualDebtService(terms models.LoanTerms) decimal.Decimal {
	return DebtServiceAt(terms.Amount(), terms.RatePercent(), terms.AmortizationYears(), terms.InterestOnly())
}

// DebtServiceAt computes annual debt service for an arbitrary amount and rate.
func DebtServiceAt(amount, annualRatePercent decimal.Decimal, amortizationYears int, interestOnly bool) decimal.Decimal {
	if interestOnly {
		return amount.Mul(annualRatePercent).Div(hundred).Round(2)
	}
	return MonthlyPayment(amount, annualRatePercent, amortizationYears).Mul(twelve).Round(2)
}

// RemainingBalance is the outstanding principal after monthsElapsed payments.
// Interest-only loans do not amortize.
func RemainingBalance(terms models.LoanTerms, monthsElapsed int) decimal.Decimal {
	principal := terms.Amount()
	if terms.InterestOnly() || monthsElapsed <= 0 {
		return principal
	}
	n := terms.AmortizationYears() * 12
	if monthsElapsed >= n {
		return decimal.Zero
	}

	payment := MonthlyPayment(principal, terms.RatePercent(), terms.AmortizationYears())
	r := MonthlyRate(terms.RatePercent())
	var balance decimal.Decimal
	if r.IsZero() {
		balance = principal.Sub(payment.Mul(decimal.NewFromInt(int64(monthsElapsed))))
	} else {
		// P * f_k - payment * (f_k - 1) / r
		fk := pow(one.Add(r), monthsElapsed)
		balance = principal.Mul(fk).Sub(payment.Mul(fk.Sub(one)).Div(r))
	}

	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance.Round(2)
}
